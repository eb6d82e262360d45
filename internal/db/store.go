// exposes a Store interface that is passed to API modules and the scheduler
package db

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/verdant-labs/growpod/internal/model"
)

type Store interface {
	// user functions
	CreateUser(email, hashedPassword string, name *string) (int, error)
	GetUserByEmail(email string) (*model.User, error)
	GetUserByID(id int) (*model.User, error)
	UpdateUserProfile(id int, email string, name *string) error

	// schedule definitions
	UpsertSchedule(def model.ScheduleDefinition) (model.ScheduleDefinition, error)
	GetSchedule(name string) (model.ScheduleDefinition, error)
	ListSchedules() ([]model.ScheduleDefinition, error)
	ListSchedulesForDevice(deviceName string) ([]model.ScheduleDefinition, error)
	DeleteSchedule(name string) error

	// calendar events
	CreateEvent(ev model.CalendarEvent) (model.CalendarEvent, error)
	GetEvent(eventID int) (model.CalendarEvent, error)
	ListEventsForDevice(deviceName string, from, to *time.Time) ([]model.CalendarEvent, error)
	UpdateEvent(ev model.CalendarEvent) (model.CalendarEvent, error)
	DeleteEvent(eventID int) error
	DeleteEventsForDevice(deviceName string) (int64, error)

	// execution log
	CreateExecutionLog(entry model.ExecutionLogEntry) (model.ExecutionLogEntry, error)
	ListExecutionLogForEvent(eventID, limit int) ([]model.ExecutionLogEntry, error)
	ListRecentExecutions(limit int) ([]model.ExecutionLogEntry, error)
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(conn *sqlx.DB) Store {
	return &pgStore{db: conn}
}
