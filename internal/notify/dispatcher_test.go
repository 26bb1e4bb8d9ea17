package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"estate-leads/internal/config"
	"estate-leads/internal/domain"
	"estate-leads/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingGateway 按路径计数的测试网关
type recordingGateway struct {
	mu     sync.Mutex
	calls  map[string]int
	fail   bool // true 时全部路径返回 500
	server *httptest.Server
}

func newRecordingGateway() *recordingGateway {
	g := &recordingGateway{calls: map[string]int{}}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.calls[r.URL.Path]++
		fail := g.fail
		g.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"error":"boom"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"sid":"SM123"}`))
	}))
	return g
}

func (g *recordingGateway) count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

func (g *recordingGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func newTestDispatcher(t *testing.T, gatewayURL string) (*Dispatcher, *repository.MemoryNotificationLogRepo) {
	t.Helper()
	cfg := config.NotifyConfig{
		GatewayBaseURL: gatewayURL,
		AdminPhone:     "+971500000001",
		AdminEmail:     "admin@agency.ae",
		Timeout:        5 * time.Second,
		RetryCount:     0,
		IdempotencyTTL: time.Hour,
	}
	gateway := NewGatewayClient(gatewayURL, cfg.Timeout, cfg.RetryCount, zap.NewNop())
	logRepo := repository.NewMemoryNotificationLogRepo()
	d := NewDispatcher(cfg, gateway, NewMemoryIdemStore(), logRepo, zap.NewNop())
	return d, logRepo
}

func notifyLead() *domain.Lead {
	return &domain.Lead{
		LeadID: "L1",
		Name:   "Jane Smith",
		Email:  "jane@x.com",
		Phone:  "+971501234567",
	}
}

func TestDispatch_LeadCreatedFanout(t *testing.T) {
	gw := newRecordingGateway()
	defer gw.server.Close()
	d, logRepo := newTestDispatcher(t, gw.server.URL)

	results := d.Dispatch(context.Background(), notifyLead(), Event{Kind: EventLeadCreated})
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.Success, r.Channel)
		assert.False(t, r.Skipped, r.Channel)
	}

	// 管理员WhatsApp + 客户WhatsApp；管理员邮件 + 客户邮件
	assert.Equal(t, 2, gw.count("/api/send-whatsapp"))
	assert.Equal(t, 2, gw.count("/api/send-email-notification"))

	// 每次渠道调用都有日志
	assert.Len(t, logRepo.Entries(), 4)
}

func TestDispatch_LeadWithoutContactSkipsClientChannels(t *testing.T) {
	gw := newRecordingGateway()
	defer gw.server.Close()
	d, _ := newTestDispatcher(t, gw.server.URL)

	lead := &domain.Lead{LeadID: "L2", Name: "Walk-in"}
	results := d.Dispatch(context.Background(), lead, Event{Kind: EventLeadCreated})

	// 只剩两个管理员渠道
	require.Len(t, results, 2)
	channels := []string{results[0].Channel, results[1].Channel}
	assert.ElementsMatch(t, []string{ChannelAdminWhatsApp, ChannelAdminEmail}, channels)
}

func TestDispatchAppointment_CallIsAdminOnly(t *testing.T) {
	gw := newRecordingGateway()
	defer gw.server.Close()
	d, _ := newTestDispatcher(t, gw.server.URL)

	appt := &domain.Appointment{AppointmentID: "A1", Type: domain.AppointmentTypeCall}
	results := d.DispatchAppointment(context.Background(), notifyLead(), appt)

	require.Len(t, results, 2)
	channels := []string{results[0].Channel, results[1].Channel}
	assert.ElementsMatch(t, []string{ChannelAdminWhatsApp, ChannelAdminEmail}, channels)
}

func TestDispatchAppointment_VisitNotifiesClient(t *testing.T) {
	gw := newRecordingGateway()
	defer gw.server.Close()
	d, _ := newTestDispatcher(t, gw.server.URL)

	appt := &domain.Appointment{AppointmentID: "A1", Type: domain.AppointmentTypeVisit}
	results := d.DispatchAppointment(context.Background(), notifyLead(), appt)

	require.Len(t, results, 4)
	channels := make([]string, 0, 4)
	for _, r := range results {
		channels = append(channels, r.Channel)
	}
	assert.ElementsMatch(t, []string{
		ChannelAdminWhatsApp, ChannelAdminEmail,
		ChannelClientWhatsApp, ChannelClientEmail,
	}, channels)
}

func TestDispatch_IdempotencySuppressesRepeat(t *testing.T) {
	gw := newRecordingGateway()
	defer gw.server.Close()
	d, logRepo := newTestDispatcher(t, gw.server.URL)
	ctx := context.Background()

	first := d.Dispatch(ctx, notifyLead(), Event{Kind: EventLeadCreated})
	require.Len(t, first, 4)
	sentBefore := gw.total()

	// 同一 (lead, event, channel) 再次触发：全部被抑制，不再调网关
	second := d.Dispatch(ctx, notifyLead(), Event{Kind: EventLeadCreated})
	require.Len(t, second, 4)
	for _, r := range second {
		assert.True(t, r.Skipped, r.Channel)
		assert.False(t, r.Success, r.Channel)
	}
	assert.Equal(t, sentBefore, gw.total())

	// 抑制的调用不写通知日志
	assert.Len(t, logRepo.Entries(), 4)
}

func TestDispatch_RefSeparatesIdempotencyScope(t *testing.T) {
	gw := newRecordingGateway()
	defer gw.server.Close()
	d, _ := newTestDispatcher(t, gw.server.URL)
	ctx := context.Background()

	lead := notifyLead()
	a1 := &domain.Appointment{AppointmentID: "A1", Type: domain.AppointmentTypeVisit}
	a2 := &domain.Appointment{AppointmentID: "A2", Type: domain.AppointmentTypeVisit}

	d.DispatchAppointment(ctx, lead, a1)
	sentAfterFirst := gw.total()

	// 不同预约ID的事件不互相抑制
	results := d.DispatchAppointment(ctx, lead, a2)
	for _, r := range results {
		assert.False(t, r.Skipped, r.Channel)
	}
	assert.Greater(t, gw.total(), sentAfterFirst)
}

func TestDispatch_ChannelFailureIsolated(t *testing.T) {
	gw := newRecordingGateway()
	defer gw.server.Close()
	gw.fail = true
	d, logRepo := newTestDispatcher(t, gw.server.URL)

	results := d.Dispatch(context.Background(), notifyLead(), Event{Kind: EventLeadCreated})
	require.Len(t, results, 4)
	for _, r := range results {
		assert.False(t, r.Success, r.Channel)
		assert.NotEmpty(t, r.Error, r.Channel)
	}

	// 失败同样记日志，success=false
	entries := logRepo.Entries()
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.False(t, e.Success)
		assert.NotEmpty(t, e.Error)
	}
}

func TestDispatch_StatusChangedAdminOnly(t *testing.T) {
	gw := newRecordingGateway()
	defer gw.server.Close()
	d, _ := newTestDispatcher(t, gw.server.URL)

	results := d.Dispatch(context.Background(), notifyLead(), Event{
		Kind: EventStatusChanged,
		Ref:  domain.StatusContacted,
		Meta: domain.StatusContacted,
	})
	require.Len(t, results, 2)
	assert.Equal(t, 0, gw.count("/api/send-sms"))
}

func TestBuildMessages(t *testing.T) {
	lead := notifyLead()
	lead.Budget = "2M-3M AED"

	subject, adminBody, clientBody := BuildMessages(lead, Event{Kind: EventLeadCreated})
	assert.Contains(t, subject, "Jane Smith")
	assert.Contains(t, adminBody, "jane@x.com")
	assert.Contains(t, clientBody, "Jane Smith")

	// 状态变更只有内部文案
	_, adminBody, clientBody = BuildMessages(lead, Event{Kind: EventStatusChanged, Meta: domain.StatusWon})
	assert.Contains(t, adminBody, domain.StatusWon)
	assert.Empty(t, clientBody)
}

func TestMemoryIdemStore_TTL(t *testing.T) {
	s := NewMemoryIdemStore()
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Acquire(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(80 * time.Millisecond)
	ok, err = s.Acquire(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}
