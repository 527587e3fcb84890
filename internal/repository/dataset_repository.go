package repository

import (
	"context"

	"fundus-go/internal/dataset"
	"fundus-go/internal/models"

	"gorm.io/gorm"
)

const insertBatchSize = 200

// DatasetRepository 参考数据集数据访问层
type DatasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository 创建参考数据集Repository
func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// ReplaceAll 在一个事务里清空旧数据并写入新数据，返回本次导入记录
func (r *DatasetRepository) ReplaceAll(ctx context.Context, source string, rows []dataset.Row) (*models.DatasetImport, error) {
	imp := &models.DatasetImport{Source: source, RowCount: len(rows)}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.DatasetRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Create(imp).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		records := make([]models.DatasetRecord, len(rows))
		for i, row := range rows {
			records[i] = toRecord(imp.ID, i, row)
		}
		return tx.CreateInBatches(records, insertBatchSize).Error
	})
	if err != nil {
		return nil, err
	}
	return imp, nil
}

// ListRows 按导入顺序读取全部行，实现 dataset.RowStore
func (r *DatasetRepository) ListRows(ctx context.Context) ([]dataset.Row, error) {
	var records []models.DatasetRecord
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	rows := make([]dataset.Row, len(records))
	for i, rec := range records {
		rows[i] = fromRecord(rec)
	}
	return rows, nil
}

// Count 当前数据行数
func (r *DatasetRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.DatasetRecord{}).Count(&total).Error
	return total, err
}

// LatestImport 最近一次导入记录，没有时返回 gorm.ErrRecordNotFound
func (r *DatasetRepository) LatestImport(ctx context.Context) (*models.DatasetImport, error) {
	var imp models.DatasetImport
	if err := r.db.WithContext(ctx).Order("id DESC").First(&imp).Error; err != nil {
		return nil, err
	}
	return &imp, nil
}

func toRecord(importID uint, position int, row dataset.Row) models.DatasetRecord {
	return models.DatasetRecord{
		ImportID:      importID,
		Position:      position,
		LeftFilename:  row.LeftFilename,
		RightFilename: row.RightFilename,
		Normal:        row.Flag(dataset.ConditionNormal),
		Diabetes:      row.Flag(dataset.ConditionDiabetes),
		Glaucoma:      row.Flag(dataset.ConditionGlaucoma),
		Cataract:      row.Flag(dataset.ConditionCataract),
		AMD:           row.Flag(dataset.ConditionAMD),
		Hypertension:  row.Flag(dataset.ConditionHypertension),
		Myopia:        row.Flag(dataset.ConditionMyopia),
		Other:         row.Flag(dataset.ConditionOther),
	}
}

func fromRecord(rec models.DatasetRecord) dataset.Row {
	return dataset.Row{
		LeftFilename:  rec.LeftFilename,
		RightFilename: rec.RightFilename,
		Flags: map[string]int{
			dataset.ConditionNormal:       rec.Normal,
			dataset.ConditionDiabetes:     rec.Diabetes,
			dataset.ConditionGlaucoma:     rec.Glaucoma,
			dataset.ConditionCataract:     rec.Cataract,
			dataset.ConditionAMD:          rec.AMD,
			dataset.ConditionHypertension: rec.Hypertension,
			dataset.ConditionMyopia:       rec.Myopia,
			dataset.ConditionOther:        rec.Other,
		},
	}
}
