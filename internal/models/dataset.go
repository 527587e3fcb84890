package models

import (
	"time"
)

// DatasetRecord 导入到数据库的参考数据行，每个病种一列
type DatasetRecord struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	ImportID      uint      `gorm:"not null;index" json:"import_id"`
	Position      int       `gorm:"not null;index" json:"position"`
	LeftFilename  string    `gorm:"size:255;not null;index:idx_pair" json:"left_filename"`
	RightFilename string    `gorm:"size:255;not null;index:idx_pair" json:"right_filename"`
	Normal        int       `gorm:"not null;default:0" json:"normal"`
	Diabetes      int       `gorm:"not null;default:0" json:"diabetes"`
	Glaucoma      int       `gorm:"not null;default:0" json:"glaucoma"`
	Cataract      int       `gorm:"not null;default:0" json:"cataract"`
	AMD           int       `gorm:"column:amd;not null;default:0" json:"amd"`
	Hypertension  int       `gorm:"not null;default:0" json:"hypertension"`
	Myopia        int       `gorm:"not null;default:0" json:"myopia"`
	Other         int       `gorm:"not null;default:0" json:"other"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (DatasetRecord) TableName() string {
	return "fundus_dataset"
}

// DatasetImport 导入记录
type DatasetImport struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Source    string    `gorm:"size:500;not null" json:"source"`
	RowCount  int       `gorm:"not null" json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (DatasetImport) TableName() string {
	return "fundus_dataset_imports"
}
