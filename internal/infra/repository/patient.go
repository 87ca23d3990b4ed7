package repository

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/healthvault/internal/domain"
	"github.com/totegamma/healthvault/internal/infra/database/models"
)

// PatientRepository keeps registry state and its transaction log in postgres.
type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Get(ctx context.Context, address common.Address) (domain.Patient, error) {
	var row models.Patient
	err := r.db.WithContext(ctx).
		Preload("Providers").
		Where("address = ?", address.Hex()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Patient{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Patient{}, err
	}

	patient := domain.NewPatient(common.HexToAddress(row.Address))
	patient.Registered = row.Registered
	patient.DataPointer = row.DataPointer
	patient.UpdatedAt = row.MDate
	for _, p := range row.Providers {
		patient.AuthorizedProviders[common.HexToAddress(p.ProviderAddress)] = struct{}{}
	}
	return patient, nil
}

func (r *PatientRepository) Commit(ctx context.Context, patient domain.Patient, event domain.Event) error {
	address := patient.Address.Hex()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Patient{
			Address:     address,
			Registered:  patient.Registered,
			DataPointer: patient.DataPointer,
			MDate:       patient.UpdatedAt,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"registered", "data_pointer", "m_date"}),
		}).Omit("Providers").Create(&row).Error
		if err != nil {
			return err
		}

		// the authorization set is small; rewrite it whole
		err = tx.Where("patient_address = ?", address).Delete(&models.PatientProvider{}).Error
		if err != nil {
			return err
		}
		providers := patient.Providers()
		if len(providers) > 0 {
			rows := make([]models.PatientProvider, 0, len(providers))
			for _, p := range providers {
				rows = append(rows, models.PatientProvider{
					PatientAddress:  address,
					ProviderAddress: p.Hex(),
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		ev := eventRow(event)
		return tx.Create(&ev).Error
	})
}

func (r *PatientRepository) Append(ctx context.Context, event domain.Event) error {
	ev := eventRow(event)
	return r.db.WithContext(ctx).Create(&ev).Error
}

func (r *PatientRepository) Events(ctx context.Context, patient common.Address) ([]domain.Event, error) {
	var rows []models.LedgerEvent
	err := r.db.WithContext(ctx).
		Where("patient = ?", patient.Hex()).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		e := domain.Event{
			TxID:      row.TxID,
			Kind:      domain.EventKind(row.Kind),
			Patient:   common.HexToAddress(row.Patient),
			Pointer:   row.Pointer,
			Timestamp: row.CDate,
		}
		if row.Provider != "" {
			e.Provider = common.HexToAddress(row.Provider)
		}
		if row.Requester != "" {
			e.Requester = common.HexToAddress(row.Requester)
		}
		events = append(events, e)
	}
	return events, nil
}

func eventRow(event domain.Event) models.LedgerEvent {
	msg := event.Message()
	return models.LedgerEvent{
		TxID:      msg.TxID,
		Kind:      msg.Kind,
		Patient:   msg.Patient,
		Provider:  msg.Provider,
		Pointer:   msg.Pointer,
		Requester: msg.Requester,
		CDate:     msg.Timestamp,
	}
}
