package storage

import "positionRegistry/internal/model"

// Journal defines a sink for executed-operation records.
type Journal interface {
	PutOperationBatch(records []model.OperationRecord) error
}
