package entities

type Fertilizer struct {
	FertilizerID uint   `gorm:"primaryKey" json:"id"`
	FertName     string `json:"name" gorm:"size:255"`
	Formulation  string `json:"formulation" gorm:"size:64"`
	Description  string `json:"description"`
}

type NutrientDeficiency struct {
	NutrientCode    string `gorm:"primaryKey;size:16" json:"code"`
	NutrientName    string `json:"name" gorm:"size:255"`
	CommonSymptoms  string `json:"symptoms"`
	DiagnosticNotes string `json:"notes"`
}
