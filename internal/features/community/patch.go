package community

import (
	"serotonyl.ru/streak-bot/internal/common"
)

// Patch: изменение настроек сообщества. Применяются только заданные поля,
// остальные (включая премиум) не трогаются.
type Patch struct {
	ActivityThreadID     *int
	ClearActivityThread  bool
	MessageCountRequired *int
	TimeLimit            *bool
	LogsChatID           *int64
	ClearLogsChat        bool
	AddCommandThread     *int
	RemoveCommandThread  *int
	AddStreakRole        *string
	RemoveStreakRole     *string
}

// Apply проверяет и применяет изменение к c.
// При ошибке c не меняется.
func (p Patch) Apply(c *Configuration) error {
	next := c.clone()

	if p.ClearActivityThread {
		next.ActivityThreadID = nil
	}
	if p.ActivityThreadID != nil {
		v := *p.ActivityThreadID
		next.ActivityThreadID = &v
	}

	if p.MessageCountRequired != nil {
		if *p.MessageCountRequired < 1 {
			return common.ErrInvalidMessageCount
		}
		next.MessageCountRequired = *p.MessageCountRequired
	}

	if p.TimeLimit != nil {
		next.TimeLimit = *p.TimeLimit
	}

	if p.ClearLogsChat {
		next.LogsChatID = nil
	}
	if p.LogsChatID != nil {
		v := *p.LogsChatID
		next.LogsChatID = &v
	}

	if p.AddCommandThread != nil {
		if containsInt(next.CommandThreadIDs, *p.AddCommandThread) {
			return common.ErrThreadAlreadyAdded
		}
		next.CommandThreadIDs = append(next.CommandThreadIDs, *p.AddCommandThread)
	}
	if p.RemoveCommandThread != nil {
		idx := indexInt(next.CommandThreadIDs, *p.RemoveCommandThread)
		if idx < 0 {
			return common.ErrThreadNotListed
		}
		next.CommandThreadIDs = append(next.CommandThreadIDs[:idx], next.CommandThreadIDs[idx+1:]...)
	}

	if p.AddStreakRole != nil {
		role := *p.AddStreakRole
		if len([]rune(role)) > 64 {
			return common.ErrRoleTooLong
		}
		if indexString(next.StreakRoles, role) >= 0 {
			return common.ErrRoleAlreadyAdded
		}
		next.StreakRoles = append(next.StreakRoles, role)
	}
	if p.RemoveStreakRole != nil {
		idx := indexString(next.StreakRoles, *p.RemoveStreakRole)
		if idx < 0 {
			return common.ErrRoleNotListed
		}
		next.StreakRoles = append(next.StreakRoles[:idx], next.StreakRoles[idx+1:]...)
	}

	*c = next
	return nil
}

func containsInt(xs []int, v int) bool { return indexInt(xs, v) >= 0 }

func indexInt(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func indexString(xs []string, v string) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}
