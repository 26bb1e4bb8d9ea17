package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// GatewayClient 消息网关客户端
// WhatsApp/SMS/Email 网关是外部HTTP服务（Twilio 等供应商的适配层），
// 这里只按约定路径调用，不关心供应商细节
type GatewayClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// gatewayResponse 网关统一响应
type gatewayResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	SID     string `json:"sid,omitempty"` // 供应商消息ID（如有）
}

// NewGatewayClient 创建网关客户端
func NewGatewayClient(baseURL string, timeout time.Duration, retryCount int, logger *zap.Logger) *GatewayClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &GatewayClient{
		httpClient: client,
		logger:     logger,
	}
}

// SendWhatsApp 发送WhatsApp消息
func (c *GatewayClient) SendWhatsApp(ctx context.Context, to, body string) error {
	return c.post(ctx, "/api/send-whatsapp", map[string]any{
		"to":      to,
		"message": body,
	})
}

// SendSMS 发送短信
func (c *GatewayClient) SendSMS(ctx context.Context, to, body string) error {
	return c.post(ctx, "/api/send-sms", map[string]any{
		"to":      to,
		"message": body,
	})
}

// SendEmail 发送邮件通知
func (c *GatewayClient) SendEmail(ctx context.Context, to, subject, body string) error {
	return c.post(ctx, "/api/send-email-notification", map[string]any{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
}

// ShareLead 向合作方网关推送线索分享负载
func (c *GatewayClient) ShareLead(ctx context.Context, payload map[string]any) error {
	return c.post(ctx, "/api/share-lead", payload)
}

// ShareAppointment 向合作方网关推送预约信息
func (c *GatewayClient) ShareAppointment(ctx context.Context, payload map[string]any) error {
	return c.post(ctx, "/api/share-appointment", payload)
}

func (c *GatewayClient) post(ctx context.Context, path string, payload map[string]any) error {
	var response gatewayResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&response).
		Post(path)
	if err != nil {
		c.logger.Error("Gateway call failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call gateway %s: %w", path, err)
	}
	if resp.StatusCode() >= 300 {
		c.logger.Error("Gateway returned error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
		)
		return fmt.Errorf("gateway %s returned status %d", path, resp.StatusCode())
	}
	if !response.Success && response.Error != "" {
		return fmt.Errorf("gateway %s rejected: %s", path, response.Error)
	}
	return nil
}
