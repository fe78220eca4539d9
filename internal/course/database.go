package course

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetByCourseID(courseID string) (*CourseCurrency, error) {
	var cc CourseCurrency
	if err := d.db.Where("course_id = ? AND is_active = ?", courseID, true).First(&cc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cc, nil
}

func (d *Database) GetByCourseIDAnyStatus(courseID string) (*CourseCurrency, error) {
	var cc CourseCurrency
	if err := d.db.Where("course_id = ?", courseID).First(&cc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cc, nil
}

func (d *Database) Save(cc *CourseCurrency) error {
	return d.db.Save(cc).Error
}

func (d *Database) Create(cc *CourseCurrency) error {
	return d.db.Create(cc).Error
}
