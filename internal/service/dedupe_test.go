package service

import (
	"testing"
	"time"

	"estate-leads/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leadAt(id, email, phone string, created time.Time) *domain.Lead {
	return &domain.Lead{
		LeadID:    id,
		Name:      "Lead " + id,
		Email:     email,
		Phone:     phone,
		CreatedAt: created,
	}
}

func TestDetectDuplicate_EmailCaseInsensitive(t *testing.T) {
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	existing := []*domain.Lead{
		leadAt("a", "jane@x.com", "", base),
	}

	check := DetectDuplicate("JANE@X.COM", "", existing)
	require.True(t, check.IsDuplicate)
	assert.Equal(t, "a", check.DuplicateOf)
	assert.Equal(t, "email", check.Reason)
}

func TestDetectDuplicate_PhoneExactMatchOnly(t *testing.T) {
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	existing := []*domain.Lead{
		leadAt("a", "", "+971501234567", base),
	}

	// 全等命中
	check := DetectDuplicate("", "+971501234567", existing)
	require.True(t, check.IsDuplicate)
	assert.Equal(t, "phone", check.Reason)

	// 不做归一化：同一号码的本地写法视为不同
	check = DetectDuplicate("", "0501234567", existing)
	assert.False(t, check.IsDuplicate)
}

func TestDetectDuplicate_EmptyFieldsNeverMatch(t *testing.T) {
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	existing := []*domain.Lead{
		leadAt("a", "", "", base),
		leadAt("b", "jane@x.com", "+971501234567", base),
	}

	check := DetectDuplicate("", "", existing)
	assert.False(t, check.IsDuplicate)
}

func TestDetectDuplicate_EarliestMatchWins(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t1.Add(48 * time.Hour)
	// 故意乱序传入：最早创建的记录胜出
	existing := []*domain.Lead{
		leadAt("later", "jane@x.com", "", t3),
		leadAt("earliest", "jane@x.com", "", t1),
		leadAt("middle", "jane@x.com", "", t2),
	}

	check := DetectDuplicate("jane@x.com", "", existing)
	require.True(t, check.IsDuplicate)
	assert.Equal(t, "earliest", check.DuplicateOf)
}

func TestDetectDuplicate_EmailBeatsPhone(t *testing.T) {
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	// 同一条最早记录邮箱与电话都命中时，reason 为 email
	existing := []*domain.Lead{
		leadAt("a", "jane@x.com", "+971501234567", base),
	}

	check := DetectDuplicate("jane@x.com", "+971501234567", existing)
	require.True(t, check.IsDuplicate)
	assert.Equal(t, "email", check.Reason)
}
