// Package store persists offline invoice records in SQLite through gorm.
package store

import (
	"context"
	"time"

	"github.com/alapierre/go-ksef-offline/ksef/offline"
	"github.com/alapierre/go-ksef-offline/ksef/qr"
	"github.com/go-faster/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type recordModel struct {
	ID     string `gorm:"type:char(36);primaryKey"`
	Mode   string `gorm:"type:varchar(32);not null"`
	Reason string `gorm:"type:varchar(255)"`

	InvoiceNumber string `gorm:"type:varchar(64);index"`
	InvoiceXML    []byte `gorm:"type:blob;not null"`
	SellerNip     string `gorm:"type:varchar(10);not null;index"`
	BuyerNip      string `gorm:"type:varchar(10)"`

	Codes qr.Codes `gorm:"serializer:json"`

	GeneratedAt         time.Time `gorm:"not null"`
	SubmitBy            time.Time `gorm:"not null;index"`
	MaintenanceWindowID string    `gorm:"type:varchar(64);index"`

	Status          string `gorm:"type:varchar(16);not null;index"`
	ReferenceNumber string `gorm:"type:varchar(64)"`
	SubmittedAt     *time.Time
	ErrorCode       string `gorm:"type:varchar(32)"`
	ErrorMessage    string `gorm:"type:varchar(1024)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (recordModel) TableName() string {
	return "offline_invoices"
}

func fromDomain(r *offline.Record) *recordModel {
	m := &recordModel{
		ID:                  r.ID,
		Mode:                r.Mode.String(),
		Reason:              r.Reason,
		InvoiceNumber:       r.InvoiceNumber,
		InvoiceXML:          r.InvoiceXML,
		SellerNip:           r.SellerNip,
		BuyerNip:            r.BuyerNip,
		Codes:               r.Codes,
		GeneratedAt:         r.GeneratedAt,
		SubmitBy:            r.SubmitBy,
		MaintenanceWindowID: r.MaintenanceWindowID,
		Status:              r.Status.String(),
		ReferenceNumber:     r.ReferenceNumber,
		SubmittedAt:         r.SubmittedAt,
	}
	if r.Error != nil {
		m.ErrorCode = r.Error.Code
		m.ErrorMessage = r.Error.Message
	}
	return m
}

func (m *recordModel) toDomain() (*offline.Record, error) {
	mode, err := offline.ParseMode(m.Mode)
	if err != nil {
		return nil, errors.Wrapf(err, "record %s", m.ID)
	}
	status, err := offline.ParseStatus(m.Status)
	if err != nil {
		return nil, errors.Wrapf(err, "record %s", m.ID)
	}

	r := &offline.Record{
		ID:                  m.ID,
		Mode:                mode,
		Reason:              m.Reason,
		InvoiceNumber:       m.InvoiceNumber,
		InvoiceXML:          m.InvoiceXML,
		SellerNip:           m.SellerNip,
		BuyerNip:            m.BuyerNip,
		Codes:               m.Codes,
		GeneratedAt:         m.GeneratedAt,
		SubmitBy:            m.SubmitBy,
		MaintenanceWindowID: m.MaintenanceWindowID,
		Status:              status,
		ReferenceNumber:     m.ReferenceNumber,
		SubmittedAt:         m.SubmittedAt,
	}
	if m.ErrorCode != "" || m.ErrorMessage != "" {
		r.Error = &offline.ErrorInfo{Code: m.ErrorCode, Message: m.ErrorMessage}
	}
	return r, nil
}

// Store is the gorm backed implementation of offline.Store.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) a SQLite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	return New(db)
}

// New wraps an existing gorm connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&recordModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate offline_invoices")
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, record *offline.Record) error {
	if record == nil || record.ID == "" {
		return errors.New("record with empty id")
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(fromDomain(record)).Error
	return errors.Wrap(err, "save record")
}

func (s *Store) Get(ctx context.Context, id string) (*offline.Record, error) {
	var m recordModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, offline.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get record")
	}
	return m.toDomain()
}

func (s *Store) List(ctx context.Context, filter offline.Filter) ([]*offline.Record, error) {
	q := s.db.WithContext(ctx).Model(&recordModel{})

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, st.String())
		}
		q = q.Where("status IN ?", statuses)
	}
	if !filter.SubmitByBefore.IsZero() {
		q = q.Where("submit_by <= ?", filter.SubmitByBefore)
	}
	if filter.MaintenanceWindowID != "" {
		q = q.Where("maintenance_window_id = ?", filter.MaintenanceWindowID)
	}
	if filter.SellerNip != "" {
		q = q.Where("seller_nip = ?", filter.SellerNip)
	}

	var models []recordModel
	if err := q.Order("submit_by ASC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list records")
	}

	records := make([]*offline.Record, 0, len(models))
	for i := range models {
		r, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Store) Update(ctx context.Context, id string, patch offline.Patch) error {
	updates := map[string]any{}

	if patch.Status != nil {
		updates["status"] = patch.Status.String()
	}
	if patch.ReferenceNumber != nil {
		updates["reference_number"] = *patch.ReferenceNumber
	}
	if patch.SubmittedAt != nil {
		updates["submitted_at"] = *patch.SubmittedAt
	}
	if patch.SubmitBy != nil {
		updates["submit_by"] = *patch.SubmitBy
	}
	if patch.Error != nil {
		updates["error_code"] = patch.Error.Code
		updates["error_message"] = patch.Error.Message
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&recordModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update record")
	}
	if res.RowsAffected == 0 {
		return offline.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&recordModel{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete record")
	}
	if res.RowsAffected == 0 {
		return offline.ErrNotFound
	}
	return nil
}
