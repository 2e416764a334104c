package service

import (
	"context"
	"encoding/json"

	"sitecms/internal/entity"
	"sitecms/internal/metrics"
	"sitecms/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const userEntity = "users"

// Diff is stored as the Changes column of an audit entry.
type Diff struct {
	Old map[string]any `json:"old,omitempty"`
	New map[string]any `json:"new,omitempty"`
}

type AuditLedger struct {
	entries repository.AuditRepository
	logger  logrus.FieldLogger
}

func NewAuditLedger(entries repository.AuditRepository, logger logrus.FieldLogger) *AuditLedger {
	return &AuditLedger{entries: entries, logger: logger}
}

// Append records an action after the mutation it describes has committed.
// Failures are logged and counted but never reach the caller.
func (l *AuditLedger) Append(
	ctx context.Context,
	actorID *uuid.UUID,
	action entity.AuditAction,
	entityName string,
	entityID *string,
	diff Diff,
) {
	fields := logrus.Fields{"action": action, "entity": entityName}
	if entityID != nil {
		fields["entity_id"] = *entityID
	}

	changes, err := json.Marshal(diff)
	if err != nil {
		metrics.AuditWriteFailures.Inc()
		l.logger.WithFields(fields).WithError(err).Error("audit write failed")
		return
	}

	entry := &entity.AuditEntry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entityName,
		EntityID: entityID,
		Changes:  datatypes.JSON(changes),
	}
	if err := l.entries.Append(context.WithoutCancel(ctx), entry); err != nil {
		metrics.AuditWriteFailures.Inc()
		l.logger.WithFields(fields).WithError(err).Error("audit write failed")
	}
}

func (l *AuditLedger) History(ctx context.Context, entityName string, entityID string, limit int) ([]entity.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := l.entries.ListByEntity(ctx, entityName, entityID, limit)
	if err != nil {
		return nil, internal("list audit entries", err)
	}
	return entries, nil
}

func idString(id uuid.UUID) *string {
	value := id.String()
	return &value
}
