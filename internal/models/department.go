package models

// Department groups workers and owns the set of categories their tasks may use.
type Department struct {
	Name       string     `gorm:"primaryKey;size:64"`
	Categories []Category `gorm:"foreignKey:Department;references:Name"`
}

// Category is a task category available to one department.
type Category struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Department string `gorm:"size:64;not null;uniqueIndex:idx_department_category"`
	Name       string `gorm:"size:64;not null;uniqueIndex:idx_department_category"`
}
