package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"estate-leads/internal/config"
	"estate-leads/internal/domain"
	"estate-leads/internal/notify"
	"estate-leads/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingGateway 统计网关调用次数
type countingGateway struct {
	mu     sync.Mutex
	calls  map[string]int
	server *httptest.Server
}

func newCountingGateway() *countingGateway {
	g := &countingGateway{calls: map[string]int{}}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.calls[r.URL.Path]++
		g.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	return g
}

func (g *countingGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func newTestScanner(t *testing.T, gatewayURL string, cfg config.ScannerConfig) (*Scanner, *repository.MemoryLeadsRepo) {
	t.Helper()
	leadsRepo := repository.NewMemoryLeadsRepo()
	notifyCfg := config.NotifyConfig{
		GatewayBaseURL: gatewayURL,
		AdminPhone:     "+971500000001",
		AdminEmail:     "admin@agency.ae",
		Timeout:        5 * time.Second,
		IdempotencyTTL: time.Hour,
	}
	gateway := notify.NewGatewayClient(gatewayURL, notifyCfg.Timeout, 0, zap.NewNop())
	dispatcher := notify.NewDispatcher(notifyCfg, gateway, notify.NewMemoryIdemStore(), repository.NewMemoryNotificationLogRepo(), zap.NewNop())
	s := NewScanner(cfg, leadsRepo, dispatcher, nil, zap.NewNop())
	return s, leadsRepo
}

func TestRunOnce_NoContactTriggersReEngagement(t *testing.T) {
	gw := newCountingGateway()
	defer gw.server.Close()

	s, leadsRepo := newTestScanner(t, gw.server.URL, config.ScannerConfig{
		NoContactAfter:    time.Hour,
		ReminderLookahead: time.Hour,
	})
	ctx := context.Background()

	// 两天未更新的回访线索
	stale := &domain.Lead{
		Name:      "Jane",
		Phone:     "+971501234567",
		Email:     "jane@x.com",
		Status:    domain.StatusCallbackScheduled,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	require.NoError(t, leadsRepo.CreateLead(ctx, stale))

	// 刚创建的线索不触发
	fresh := &domain.Lead{Name: "Ali", Phone: "+971509999999", Status: domain.StatusCallbackScheduled}
	require.NoError(t, leadsRepo.CreateLead(ctx, fresh))

	require.NoError(t, s.RunOnce(ctx))
	sent := gw.total()
	assert.Greater(t, sent, 0)

	// 同一天内再次扫描：幂等键抑制，重触达不重复发送
	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, sent, gw.total())
}

func TestRunOnce_IgnoresNonFollowupStatuses(t *testing.T) {
	gw := newCountingGateway()
	defer gw.server.Close()

	s, leadsRepo := newTestScanner(t, gw.server.URL, config.ScannerConfig{
		NoContactAfter:    time.Hour,
		ReminderLookahead: time.Hour,
	})
	ctx := context.Background()

	// 终态/搁置态线索不参与跟进扫描
	for _, status := range []string{domain.StatusWon, domain.StatusLost, domain.StatusOnHold} {
		lead := &domain.Lead{
			Name:      "Lead " + status,
			Phone:     "+971501234567",
			Status:    status,
			CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
		}
		require.NoError(t, leadsRepo.CreateLead(ctx, lead))
	}

	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, 0, gw.total())
}

func TestRunOnce_AppointmentReminder(t *testing.T) {
	gw := newCountingGateway()
	defer gw.server.Close()

	s, leadsRepo := newTestScanner(t, gw.server.URL, config.ScannerConfig{
		NoContactAfter:    time.Hour,
		ReminderLookahead: time.Hour,
	})
	ctx := context.Background()

	lead := &domain.Lead{Name: "Jane", Phone: "+971501234567", Email: "jane@x.com", Status: domain.StatusVisitScheduled}
	require.NoError(t, leadsRepo.CreateLead(ctx, lead))

	// 30分钟后开始的预约落在提醒窗口内
	soon := &domain.Appointment{
		LeadID:    lead.LeadID,
		Type:      domain.AppointmentTypeVisit,
		StartTime: time.Now().UTC().Add(30 * time.Minute),
		Status:    domain.AppointmentScheduled,
	}
	require.NoError(t, leadsRepo.AddAppointment(ctx, soon))

	// 明天的预约不在窗口内
	later := &domain.Appointment{
		LeadID:    lead.LeadID,
		Type:      domain.AppointmentTypeVisit,
		StartTime: time.Now().UTC().Add(24 * time.Hour),
		Status:    domain.AppointmentScheduled,
	}
	require.NoError(t, leadsRepo.AddAppointment(ctx, later))

	require.NoError(t, s.RunOnce(ctx))
	sent := gw.total()
	assert.Greater(t, sent, 0)

	// 下一轮扫描同一预约不再重复提醒
	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, sent, gw.total())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	gw := newCountingGateway()
	defer gw.server.Close()

	s, _ := newTestScanner(t, gw.server.URL, config.ScannerConfig{
		CheckInterval:     10 * time.Millisecond,
		NoContactAfter:    time.Hour,
		ReminderLookahead: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop after context cancel")
	}
}
