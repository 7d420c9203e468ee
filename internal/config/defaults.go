package config

import (
	"time"

	"sales-pipeline/internal/model"
)

// Step kinds understood by the transformation step registry.
const (
	StepClean   = "clean"
	StepRename  = "rename"
	StepConvert = "convert"
	StepSales   = "sales"
	StepDate    = "date"
	StepAddress = "address"
)

// Default returns the reference configuration: the monthly sales CSVs under
// data/raw, consolidated into data/processed_data/sales_2019.csv and the
// sales_2019 table.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/pipeline.log",
		},
		Ingest: IngestConfig{
			SourceDir:    "data/raw",
			ProcessedDir: "data/processed",
			ErrorDir:     "data/error",
			Patterns:     []string{"*.csv", "*.xlsx"},
			Workers:      1,
			Retry:        model.DefaultRetryPolicy(),
		},
		Transform: TransformConfig{
			Steps:      DefaultSteps(),
			SampleSize: 5,
		},
		Output: OutputConfig{
			CSVPath:    "data/processed_data/sales_2019.csv",
			Driver:     "sqlite3",
			DSN:        "data/databases/sales.sqlite",
			Year:       2019,
			TimeLayout: "2006-01-02 15:04:05",
		},
		Forecast: ForecastConfig{
			DataPath:     "data/processed_data/sales_2019.csv",
			OutputPath:   "data/forecasts/sales_forecast.csv",
			TimeColumn:   "OrderDate",
			ValueColumn:  "Sales",
			TestFraction: 0.15,
			Horizon:      14,
			ModelID:      "sales-forecaster",
			Model: ModelConfig{
				Kind:   "reduction",
				Params: map[string]float64{"window": 7, "lr": 0.1, "epochs": 500},
			},
			Tuning: TuningConfig{
				Mode: "grid",
				Grid: []GridAxis{
					{Name: "lr", Values: []float64{0.1, 0.01}},
					{Name: "window", Values: []float64{7, 14}},
				},
				NIter: 4,
				Seed:  42,
				CV:    CVConfig{Kind: "expanding", Window: 60, Step: 7, Horizon: 7},
			},
			Registry: RegistryConfig{Backend: "file", Dir: "models"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// DefaultSteps is the reference transformation order:
// clean, rename, convert, sales, date, address.
func DefaultSteps() []StepConfig {
	return []StepConfig{
		{Kind: StepClean, Column: "Product"},
		{Kind: StepRename, Mapping: map[string]string{
			"Order ID":         "OrderID",
			"Quantity Ordered": "QuantityOrdered",
			"Price Each":       "PriceEach",
			"Order Date":       "OrderDate",
			"Purchase Address": "PurchaseAddress",
		}},
		{Kind: StepConvert, Mapping: map[string]string{
			"OrderID":         "int",
			"QuantityOrdered": "int",
			"PriceEach":       "float",
		}},
		{Kind: StepSales, Left: "QuantityOrdered", Right: "PriceEach", Output: "Sales"},
		{Kind: StepDate, Column: "OrderDate", Layout: "1/2/06 15:04"},
		{Kind: StepAddress, Column: "PurchaseAddress", Delimiter: ", ",
			Targets: []string{"StreetAddress", "CityName", "ZipAddress"}},
	}
}
