package db

import (
	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/model"
)

const executionColumns = `log_id, event_id, execution_time, success, error_message, response_data`

func (s *pgStore) CreateExecutionLog(entry model.ExecutionLogEntry) (model.ExecutionLogEntry, error) {
	var out model.ExecutionLogEntry
	const q = `
	INSERT INTO event_execution_log (event_id, execution_time, success, error_message, response_data)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + executionColumns + `;`
	if err := s.db.Get(&out, q,
		entry.EventID, entry.ExecutionTime, entry.Success, entry.ErrorMessage, jsonArg(entry.ResponseData),
	); err != nil {
		log.Error().Err(err).Msg("CreateExecutionLog failed")
		return model.ExecutionLogEntry{}, err
	}
	return out, nil
}

func (s *pgStore) ListExecutionLogForEvent(eventID, limit int) ([]model.ExecutionLogEntry, error) {
	var out []model.ExecutionLogEntry
	const q = `
	SELECT ` + executionColumns + `
	  FROM event_execution_log
	 WHERE event_id = $1
	 ORDER BY execution_time DESC
	 LIMIT $2;`
	if err := s.db.Select(&out, q, eventID, limit); err != nil {
		log.Error().Err(err).Int("event_id", eventID).Msg("ListExecutionLogForEvent failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) ListRecentExecutions(limit int) ([]model.ExecutionLogEntry, error) {
	var out []model.ExecutionLogEntry
	const q = `
	SELECT ` + executionColumns + `
	  FROM event_execution_log
	 ORDER BY execution_time DESC
	 LIMIT $1;`
	if err := s.db.Select(&out, q, limit); err != nil {
		log.Error().Err(err).Msg("ListRecentExecutions failed")
		return nil, err
	}
	return out, nil
}
