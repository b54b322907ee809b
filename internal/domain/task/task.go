package task

import (
	"maps"
	"strings"
	"time"

	"github.com/lllypuk/taskflow/internal/domain/errs"
	"github.com/lllypuk/taskflow/internal/domain/event"
	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// Aggregate представляет Task aggregate с поддержкой Event Sourcing
type Aggregate struct {
	// Идентификатор aggregate
	id uuid.UUID

	// Текущее состояние (восстанавливается из событий)
	name         string
	assignee     string
	group        string
	owner        string
	status       Status
	variables    map[string]any
	deleteReason string
	createdAt    time.Time
	updatedAt    time.Time

	// Event Sourcing поля
	version           int
	uncommittedEvents []event.DomainEvent

	// correlationID проставляется в метаданные новых событий
	correlationID string
}

// NewTaskAggregate создает новый пустой агрегат
func NewTaskAggregate(id uuid.UUID) *Aggregate {
	return &Aggregate{
		id:                id,
		uncommittedEvents: make([]event.DomainEvent, 0),
	}
}

// WithCorrelationID задает correlation ID для событий, создаваемых агрегатом
func (a *Aggregate) WithCorrelationID(correlationID string) *Aggregate {
	a.correlationID = correlationID
	return a
}

// Create создает новую задачу (генерирует событие TaskCreated).
// Должен быть задан ровно один из assignee и group.
func (a *Aggregate) Create(name, assignee, group string, owner principal.Principal) error {
	// Проверка, что задача еще не создана
	if a.version > 0 {
		return errs.ErrAlreadyExists
	}

	if owner.IsZero() {
		return errs.ErrUnauthenticated
	}

	name = strings.TrimSpace(name)
	assignee = strings.TrimSpace(assignee)
	group = strings.TrimSpace(group)

	if name == "" {
		return errs.ErrInvalidInput
	}
	if (assignee == "") == (group == "") {
		return errs.ErrInvalidInput
	}

	status := StatusCreated
	if assignee != "" {
		status = StatusAssigned
	}

	a.apply(NewTaskCreated(
		a.id,
		a.nextVersion(),
		name,
		assignee,
		group,
		owner.Username(),
		status,
		a.metadata(owner),
	))

	return nil
}

// Claim назначает групповую задачу вызывающему пользователю
func (a *Aggregate) Claim(p principal.Principal) error {
	if err := a.checkExists(); err != nil {
		return err
	}
	if !a.IsVisibleTo(p) {
		return errs.ErrNotFound
	}
	if a.status != StatusCreated {
		return errs.ErrInvalidState
	}
	if !p.IsAdmin() && !p.InGroup(a.group) {
		return errs.ErrNotFound
	}

	a.apply(NewTaskClaimed(a.id, a.nextVersion(), p.Username(), a.metadata(p)))
	return nil
}

// Release возвращает задачу в группу; выполнить может только текущий исполнитель
func (a *Aggregate) Release(p principal.Principal) error {
	if err := a.checkExists(); err != nil {
		return err
	}
	if !a.IsVisibleTo(p) {
		return errs.ErrNotFound
	}
	if a.assignee == "" {
		return errs.ErrInvalidState
	}
	if !p.Is(a.assignee) {
		return errs.ErrNotFound
	}
	// без группы освобожденную задачу увидит только администратор
	if a.group == "" && !p.IsAdmin() {
		return errs.ErrInvalidState
	}

	return a.release(p)
}

// Complete завершает задачу; выполнить может только текущий исполнитель
func (a *Aggregate) Complete(p principal.Principal, variables map[string]any) error {
	if err := a.checkExists(); err != nil {
		return err
	}
	if !a.IsVisibleTo(p) || !p.Is(a.assignee) || a.status != StatusAssigned {
		return errs.ErrNotFound
	}

	a.apply(NewTaskCompleted(a.id, a.nextVersion(), p.Username(), maps.Clone(variables), a.metadata(p)))
	return nil
}

// Delete переводит задачу в статус DELETED.
// Неадминистратор может удалить только назначенную ему задачу.
func (a *Aggregate) Delete(p principal.Principal, reason string) error {
	if err := a.checkExists(); err != nil {
		return err
	}
	if !a.IsVisibleTo(p) {
		return errs.ErrNotFound
	}
	if a.status.IsTerminal() {
		return errs.ErrInvalidState
	}
	if !p.IsAdmin() {
		// Неназначенная групповая задача: владелец неоднозначен
		if a.assignee == "" {
			return errs.ErrInvalidState
		}
		if !p.Is(a.assignee) {
			return errs.ErrNotFound
		}
	}

	return a.delete(p, reason)
}

// AssignTo назначает задачу пользователю в обход правил видимости (административная операция)
func (a *Aggregate) AssignTo(actor principal.Principal, assignee string) error {
	if err := a.checkExists(); err != nil {
		return err
	}

	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return errs.ErrInvalidInput
	}
	if a.status.IsTerminal() {
		return errs.ErrInvalidState
	}

	// Идемпотентность: задача уже назначена этому пользователю
	if a.assignee == assignee {
		return nil
	}

	a.apply(NewTaskAssigned(a.id, a.nextVersion(), assignee, a.assignee, a.metadata(actor)))
	return nil
}

// ForceRelease снимает исполнителя в обход правил видимости (административная операция)
func (a *Aggregate) ForceRelease(actor principal.Principal) error {
	if err := a.checkExists(); err != nil {
		return err
	}
	if a.status.IsTerminal() || a.assignee == "" {
		return errs.ErrInvalidState
	}

	return a.release(actor)
}

// ForceDelete удаляет задачу в обход правил видимости (административная операция)
func (a *Aggregate) ForceDelete(actor principal.Principal, reason string) error {
	if err := a.checkExists(); err != nil {
		return err
	}
	if a.status.IsTerminal() {
		return errs.ErrInvalidState
	}

	return a.delete(actor, reason)
}

// IsVisibleTo сообщает, видна ли задача принципалу
func (a *Aggregate) IsVisibleTo(p principal.Principal) bool {
	return IsVisible(p, a.assignee, a.group, a.status)
}

func (a *Aggregate) release(actor principal.Principal) error {
	if !a.status.CanTransitionTo(StatusCreated) {
		return errs.ErrInvalidTransition
	}
	a.apply(NewTaskReleased(a.id, a.nextVersion(), a.assignee, a.metadata(actor)))
	return nil
}

func (a *Aggregate) delete(actor principal.Principal, reason string) error {
	if !a.status.CanTransitionTo(StatusDeleted) {
		return errs.ErrInvalidTransition
	}
	a.apply(NewTaskDeleted(
		a.id,
		a.nextVersion(),
		actor.Username(),
		strings.TrimSpace(reason),
		a.status,
		a.metadata(actor),
	))
	return nil
}

func (a *Aggregate) checkExists() error {
	if a.version == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (a *Aggregate) nextVersion() int {
	return a.version + 1
}

func (a *Aggregate) metadata(actor principal.Principal) event.Metadata {
	correlationID := a.correlationID
	if correlationID == "" {
		correlationID = uuid.NewUUID().String()
	}
	return event.NewMetadata(actor.Username(), correlationID, uuid.NewUUID().String())
}

// apply применяет событие к агрегату и добавляет его в uncommittedEvents
func (a *Aggregate) apply(evt event.DomainEvent) {
	a.applyChange(evt)
	a.uncommittedEvents = append(a.uncommittedEvents, evt)
}

// applyChange применяет изменения из события к состоянию агрегата
func (a *Aggregate) applyChange(evt event.DomainEvent) {
	switch e := evt.(type) {
	case *Created:
		a.name = e.Name
		a.assignee = e.Assignee
		a.group = e.Group
		a.owner = e.Owner
		a.status = e.Status
		a.createdAt = e.OccurredAt()
	case *Claimed:
		a.assignee = e.Assignee
		a.status = StatusAssigned
	case *Assigned:
		a.assignee = e.Assignee
		a.status = StatusAssigned
	case *Released:
		a.assignee = ""
		a.status = StatusCreated
	case *Completed:
		a.variables = e.Variables
		a.status = StatusCompleted
	case *Deleted:
		a.deleteReason = e.Reason
		a.status = StatusDeleted
	}

	a.updatedAt = evt.OccurredAt()
	a.version = evt.Version()
}

// ReplayEvents восстанавливает состояние агрегата из истории событий
func (a *Aggregate) ReplayEvents(events []event.DomainEvent) {
	for _, evt := range events {
		a.applyChange(evt)
	}
}

// UncommittedEvents возвращает несохраненные события
func (a *Aggregate) UncommittedEvents() []event.DomainEvent {
	return a.uncommittedEvents
}

// MarkEventsAsCommitted очищает список несохраненных событий
func (a *Aggregate) MarkEventsAsCommitted() {
	a.uncommittedEvents = make([]event.DomainEvent, 0)
}

// Version возвращает текущую версию агрегата
func (a *Aggregate) Version() int {
	return a.version
}

// Getters

// ID возвращает ID задачи
func (a *Aggregate) ID() uuid.UUID { return a.id }

// Name возвращает название задачи
func (a *Aggregate) Name() string { return a.name }

// Assignee возвращает исполнителя ("" если не назначен)
func (a *Aggregate) Assignee() string { return a.assignee }

// Group возвращает кандидатную группу ("" если не задана)
func (a *Aggregate) Group() string { return a.group }

// Owner возвращает username создателя задачи
func (a *Aggregate) Owner() string { return a.owner }

// Status возвращает статус задачи
func (a *Aggregate) Status() Status { return a.status }

// Variables возвращает копию переменных, переданных при завершении
func (a *Aggregate) Variables() map[string]any { return maps.Clone(a.variables) }

// DeleteReason возвращает причину удаления
func (a *Aggregate) DeleteReason() string { return a.deleteReason }

// CreatedAt возвращает время создания
func (a *Aggregate) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt возвращает время последнего изменения
func (a *Aggregate) UpdatedAt() time.Time { return a.updatedAt }
