package usage

import (
	"log"
	"time"

	"github.com/seyalabs/media-hub/config"
	"github.com/seyalabs/media-hub/database/models"
	usagerepo "github.com/seyalabs/media-hub/database/repo/usage"
	"github.com/seyalabs/media-hub/utils"
)

// Period 用量汇总周期
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod 解析周期参数,空值按月处理
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return Period(s), true
	case "":
		return PeriodMonth, true
	}
	return "", false
}

// Verdict 限额检查结论
type Verdict struct {
	Allowed bool
	Reason  string
}

// Summary 一个账户在所选周期内的累计用量
type Summary struct {
	Plan           string `json:"plan"`
	Period         string `json:"period"`
	StorageBytes   int64  `json:"storage_bytes"`
	EgressBytes    int64  `json:"egress_bytes"`
	TransformCount int64  `json:"transform_count"`

	StorageLimitBytes   int64 `json:"storage_limit_bytes"`
	EgressLimitBytes    int64 `json:"egress_limit_bytes"`
	TransformLimitCount int64 `json:"transform_limit_count"`
}

// Meter 用量计量器。记录只追加,限额按套餐在计费周期内汇总判断。
type Meter struct {
	repo  *usagerepo.UsageRepository
	plans map[string]config.PlanLimits
	now   func() time.Time
}

// NewMeter 创建计量器
func NewMeter(repo *usagerepo.UsageRepository, plans map[string]config.PlanLimits) *Meter {
	return &Meter{repo: repo, plans: plans, now: time.Now}
}

// Record 追加一条用量事件。计量失败只记日志,绝不让一次
// 成功的交付因为计量问题报错。
func (m *Meter) Record(accountID uint, kind string, bytes, count int64) {
	event := &models.UsageEvent{
		AccountID: accountID,
		Kind:      kind,
		Bytes:     bytes,
		Count:     count,
	}
	if err := m.repo.Append(event); err != nil {
		log.Printf("[Usage] record %s for account %d failed: %s", kind, accountID, utils.SanitizeLogMessage(err.Error()))
	}
}

// CheckLimit 判断账户是否还允许一次交付。流量按月结,转换次数也按月结。
// 汇总查询失败时放行并记日志,宁可多交付不可误伤。
func (m *Meter) CheckLimit(accountID uint, plan string) Verdict {
	limits := m.planFor(plan)
	monthStart := m.monthStart()

	egressBytes, _, err := m.repo.SumSince(accountID, models.UsageKindEgress, monthStart)
	if err != nil {
		log.Printf("[Usage] egress sum for account %d failed: %s", accountID, utils.SanitizeLogMessage(err.Error()))
		return Verdict{Allowed: true}
	}
	if limits.EgressMB > 0 && egressBytes >= limits.EgressMB<<20 {
		return Verdict{Allowed: false, Reason: "monthly egress limit reached"}
	}

	_, transforms, err := m.repo.SumSince(accountID, models.UsageKindTransform, monthStart)
	if err != nil {
		log.Printf("[Usage] transform sum for account %d failed: %s", accountID, utils.SanitizeLogMessage(err.Error()))
		return Verdict{Allowed: true}
	}
	if limits.TransformCount > 0 && transforms >= limits.TransformCount {
		return Verdict{Allowed: false, Reason: "monthly transform limit reached"}
	}

	return Verdict{Allowed: true}
}

// CheckStorage 判断账户是否还允许写入 incoming 字节的新对象
func (m *Meter) CheckStorage(accountID uint, plan string, incoming int64) Verdict {
	limits := m.planFor(plan)
	stored, _, err := m.repo.SumSince(accountID, models.UsageKindStorageWrite, time.Time{})
	if err != nil {
		log.Printf("[Usage] storage sum for account %d failed: %s", accountID, utils.SanitizeLogMessage(err.Error()))
		return Verdict{Allowed: true}
	}
	if limits.StorageMB > 0 && stored+incoming > limits.StorageMB<<20 {
		return Verdict{Allowed: false, Reason: "storage limit reached"}
	}
	return Verdict{Allowed: true}
}

// CurrentUsage 汇总账户所选周期的用量与套餐限额。存储量始终按总量计。
func (m *Meter) CurrentUsage(accountID uint, plan string, period Period) (*Summary, error) {
	limits := m.planFor(plan)
	since := m.periodStart(period)

	stored, _, err := m.repo.SumSince(accountID, models.UsageKindStorageWrite, time.Time{})
	if err != nil {
		return nil, err
	}
	egress, _, err := m.repo.SumSince(accountID, models.UsageKindEgress, since)
	if err != nil {
		return nil, err
	}
	_, transforms, err := m.repo.SumSince(accountID, models.UsageKindTransform, since)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Plan:                plan,
		Period:              string(period),
		StorageBytes:        stored,
		EgressBytes:         egress,
		TransformCount:      transforms,
		StorageLimitBytes:   limits.StorageMB << 20,
		EgressLimitBytes:    limits.EgressMB << 20,
		TransformLimitCount: limits.TransformCount,
	}, nil
}

func (m *Meter) planFor(plan string) config.PlanLimits {
	if limits, ok := m.plans[plan]; ok {
		return limits
	}
	return m.plans[models.PlanStarter]
}

// monthStart 本地时区当月 1 日零点
func (m *Meter) monthStart() time.Time {
	now := m.now()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// periodStart 周期起点:day 为本地当日零点,week 为滚动 7 天,month 为当月 1 日
func (m *Meter) periodStart(period Period) time.Time {
	now := m.now()
	switch period {
	case PeriodDay:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	default:
		return m.monthStart()
	}
}
