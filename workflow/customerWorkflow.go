package workflow

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/config"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
	"gorm.io/gorm"
)

func ProcessCustomerWorkflow(tx *gorm.DB, logger *logrus.Logger, ev *models.EventRecord) error {
	p, err := models.DecodeCustomerPayload(ev.Payload)
	if err != nil {
		config.LogError(logger, "customerWorkflow.go", "ProcessCustomerWorkflow", "DecodePayload", ev.ID, err)
		return err
	}

	customer := models.Customer{
		ID:         p.CustomerId,
		StoreId:    ev.StoreId,
		Name:       p.Name,
		DocumentId: p.DocumentId,
		Phone:      p.Phone,
		Note:       p.Note,
	}

	if ev.Type == models.EventTypeCustomerCreated {
		_, err := createIfAbsent(tx, &customer)
		return err
	}

	var existing models.Customer
	err = tx.Where("store_id = ? AND id = ?", ev.StoreId, p.CustomerId).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, cerr := createIfAbsent(tx, &customer)
		return cerr
	}
	if err != nil {
		return err
	}
	return tx.Model(&models.Customer{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"name":        p.Name,
			"document_id": p.DocumentId,
			"phone":       p.Phone,
			"note":        p.Note,
		}).Error
}
