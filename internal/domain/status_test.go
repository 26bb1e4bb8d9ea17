package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus_PipelineChain(t *testing.T) {
	// 售前链按顺序逐步推进
	expected := map[string]string{
		StatusNew:               StatusAttemptedContact,
		StatusAttemptedContact:  StatusContacted,
		StatusContacted:         StatusCallbackScheduled,
		StatusCallbackScheduled: StatusVisitScheduled,
		StatusVisitScheduled:    StatusVisited,
		StatusVisited:           StatusProposalSent,
		StatusProposalSent:      StatusNegotiation,
		StatusNegotiation:       StatusFollowupScheduled,
		StatusFollowupScheduled: StatusWon,
	}
	for current, want := range expected {
		next, err := NextStatus(current)
		require.NoError(t, err, "progress from %s", current)
		assert.Equal(t, want, next, "progress from %s", current)
	}
}

func TestNextStatus_PostSaleChain(t *testing.T) {
	// won 是售前出口、售后入口
	next, err := NextStatus(StatusWon)
	require.NoError(t, err)
	assert.Equal(t, StatusKYCPending, next)

	next, err = NextStatus(StatusKYCPending)
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentPending, next)

	next, err = NextStatus(StatusPaymentPending)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, next)
}

func TestNextStatus_TerminalStates(t *testing.T) {
	for _, s := range []string{StatusCompleted, StatusLost, StatusNotInterested} {
		_, err := NextStatus(s)
		require.Error(t, err, "terminal status %s must not progress", s)
		assert.True(t, TerminalStatus(s))
	}
}

func TestNextStatus_ParkedStates(t *testing.T) {
	// 搁置态不参与推进，必须显式 SetStatus 回管道
	for _, s := range []string{StatusNoResponse, StatusOnHold} {
		_, err := NextStatus(s)
		require.Error(t, err, "parked status %s must not progress", s)
		assert.True(t, ParkedStatus(s))
		assert.False(t, TerminalStatus(s))
	}
}

func TestNextStatus_UnknownStatus(t *testing.T) {
	_, err := NextStatus("garbage")
	require.Error(t, err)
}

func TestValidStatus(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, ValidStatus(s), s)
	}
	assert.False(t, ValidStatus(""))
	assert.False(t, ValidStatus("NEW"))
	assert.False(t, ValidStatus("closed"))
}

func TestPipelineIndex(t *testing.T) {
	assert.Equal(t, 0, PipelineIndex(StatusNew))
	assert.Equal(t, len(PipelineOrder)-1, PipelineIndex(StatusWon))
	// 售后/搁置/流失不在售前管道内
	assert.Equal(t, -1, PipelineIndex(StatusKYCPending))
	assert.Equal(t, -1, PipelineIndex(StatusOnHold))
	assert.Equal(t, -1, PipelineIndex(StatusLost))
}
