package db

import (
	"github.com/fleetwatch-dev/fleetwatch/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDatabase(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})

	if err != nil {
		return err
	}

	return nil
}

func MigrateDatabase() error {
	models := []interface{}{
		&models.Company{},
		&models.User{},
		&models.Contact{},
		&models.CompanyFeature{},
		&models.Alert{},
		&models.NotificationResult{},
		&models.NotificationDeliveryEvent{},
		&models.NotificationAck{},
		&models.DomainEvent{},
		&models.AlertComment{},
	}

	migrator := DB.Migrator()

	for _, model := range models {
		if !migrator.HasTable(model) {
			if err := DB.AutoMigrate(model); err != nil {
				return err
			}
		}
	}

	return nil
}
