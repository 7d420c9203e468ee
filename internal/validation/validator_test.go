package validation

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-pipeline/internal/logging"
	"sales-pipeline/internal/model"
)

func salesRecord() model.Record {
	return model.Record{
		"OrderID":         int64(176558),
		"Product":         "USB-C Charging Cable",
		"QuantityOrdered": int64(2),
		"PriceEach":       11.95,
		"OrderDate":       time.Date(2019, 4, 19, 8, 46, 0, 0, time.UTC),
		"Sales":           23.9,
		"Hour":            int64(8),
		"Month":           int64(4),
		"Day":             int64(19),
		"DayName":         "Friday",
		"Year":            int64(2019),
		"ZipCode":         "75001",
		"StateCode":       "TX",
	}
}

func newSalesValidator(t *testing.T, sample int) *OutputValidator {
	t.Helper()
	v, err := NewOutputValidator(SalesRow{}, sample, logging.Discard())
	require.NoError(t, err)
	return v
}

func TestValidateAcceptsValidSample(t *testing.T) {
	b := model.NewBatch("test", "OrderID")
	b.Append(salesRecord())
	b.Append(model.Record{}) // all fields optional

	out, verr := newSalesValidator(t, 5).Validate(b)
	assert.Nil(t, verr)
	assert.Same(t, b, out)
}

func TestValidateReportsTypeAndRuleViolations(t *testing.T) {
	bad := salesRecord()
	bad["OrderID"] = "176558" // string where an integer is expected
	bad["Hour"] = int64(25)

	b := model.NewBatch("test")
	b.Append(bad)

	out, verr := newSalesValidator(t, 5).Validate(b)
	require.NotNil(t, verr)
	assert.Same(t, b, out, "batch is returned untouched")
	assert.Equal(t, 1, b.Len())
	assert.True(t, errors.Is(verr, model.ErrSchemaValidation))

	byField := map[string]model.FieldViolation{}
	for _, v := range verr.Violations {
		byField[v.Field] = v
	}
	require.Contains(t, byField, "OrderID")
	assert.Equal(t, "type", byField["OrderID"].Rule)
	assert.Equal(t, "int64", byField["OrderID"].Expected)
	require.Contains(t, byField, "Hour")
	assert.Equal(t, "max", byField["Hour"].Rule)

	var decoded model.SchemaValidationError
	require.NoError(t, json.Unmarshal([]byte(verr.JSON()), &decoded))
	assert.Equal(t, "SalesRow", decoded.Schema)
	assert.Len(t, decoded.Violations, len(verr.Violations))
}

func TestValidateOnlyInspectsSample(t *testing.T) {
	b := model.NewBatch("test")
	for i := 0; i < 3; i++ {
		b.Append(salesRecord())
	}
	bad := salesRecord()
	bad["Month"] = int64(13)
	b.Append(bad)

	_, verr := newSalesValidator(t, 3).Validate(b)
	assert.Nil(t, verr, "row outside the sample is not inspected")

	_, verr = newSalesValidator(t, 4).Validate(b)
	assert.NotNil(t, verr)
}

func TestIntegersWidenToFloat(t *testing.T) {
	rec := salesRecord()
	rec["Sales"] = int64(24)
	b := model.NewBatch("test")
	b.Append(rec)

	_, verr := newSalesValidator(t, 1).Validate(b)
	assert.Nil(t, verr)
}

func TestSeriesRowRejectsNegativeSales(t *testing.T) {
	v, err := NewOutputValidator(SeriesRow{}, 5, logging.Discard())
	require.NoError(t, err)

	day := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	b := model.NewBatch("series", "Date", "Sales")
	b.Append(model.Record{"Date": day, "Sales": 12.5})
	b.Append(model.Record{"Date": day.AddDate(0, 0, 1), "Sales": 0.0})

	_, verr := v.Validate(b)
	assert.Nil(t, verr)

	b.Append(model.Record{"Date": day.AddDate(0, 0, 2), "Sales": -3.0})
	_, verr = v.Validate(b)
	require.NotNil(t, verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "Sales", verr.Violations[0].Field)
	assert.Equal(t, "gte", verr.Violations[0].Rule)
	assert.Equal(t, 2, verr.Violations[0].Row)
}

func TestNewOutputValidatorRejectsBadSchema(t *testing.T) {
	_, err := NewOutputValidator(struct{ A int }{}, 5, logging.Discard())
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	_, err = NewOutputValidator(42, 5, logging.Discard())
	assert.True(t, errors.Is(err, model.ErrConfiguration))
}
