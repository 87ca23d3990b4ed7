package models

import (
	"time"
)

type Patient struct {
	Address     string            `json:"address" gorm:"primaryKey;type:text"`
	Registered  bool              `json:"registered" gorm:"type:boolean;not null;default:false"`
	DataPointer string            `json:"dataPointer" gorm:"type:text"`
	Providers   []PatientProvider `json:"providers" gorm:"foreignKey:PatientAddress;references:Address;constraint:OnDelete:CASCADE;"`
	CDate       time.Time         `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate       time.Time         `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type PatientProvider struct {
	PatientAddress  string    `json:"patientAddress" gorm:"primaryKey;type:text"`
	ProviderAddress string    `json:"providerAddress" gorm:"primaryKey;type:text;index"`
	CDate           time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
