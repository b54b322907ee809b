package task

import (
	"slices"

	"github.com/lllypuk/taskflow/internal/domain/principal"
)

// Visibility описывает множество задач, видимых принципалу.
// Репозитории транслируют его в свой язык запросов (Mongo $or,
// предикат для in-memory хранилища).
type Visibility struct {
	// All отключает фильтрацию (администратор)
	All bool

	// Username видит назначенные ему нетерминальные задачи
	Username string

	// Groups видят неназначенные нетерминальные задачи своих групп
	Groups []string
}

// VisibilityFor строит фильтр видимости для принципала
func VisibilityFor(p principal.Principal) Visibility {
	if p.IsAdmin() {
		return Visibility{All: true}
	}
	return Visibility{
		Username: p.Username(),
		Groups:   p.Groups(),
	}
}

// Everything фильтр без ограничений, используется административными операциями
func Everything() Visibility {
	return Visibility{All: true}
}

// Matches проверяет, попадает ли задача в фильтр
func (v Visibility) Matches(assignee, group string, status Status) bool {
	if v.All {
		return true
	}
	if status.IsTerminal() {
		return false
	}
	if assignee != "" {
		return v.Username != "" && assignee == v.Username
	}
	return group != "" && slices.Contains(v.Groups, group)
}

// IsVisible сообщает, видна ли задача принципалу
func IsVisible(p principal.Principal, assignee, group string, status Status) bool {
	if p.IsZero() {
		return false
	}
	return VisibilityFor(p).Matches(assignee, group, status)
}
