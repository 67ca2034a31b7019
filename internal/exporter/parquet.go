package exporter

import (
	"encoding/json"
	"fmt"
	"io"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"idschooldata/pkg/contracts/domain"
)

// ParquetWriter renders enrollment tables as a single SNAPPY compressed
// Parquet file.
type ParquetWriter struct {
	parallel int64
}

// NewParquetWriter creates a writer using parallel marshalling goroutines.
// Values below one select four.
func NewParquetWriter(parallel int64) *ParquetWriter {
	if parallel < 1 {
		parallel = 4
	}
	return &ParquetWriter{parallel: parallel}
}

type parquetField struct {
	name     string
	kind     string
	required bool
}

func (f parquetField) tag() string {
	rep := "OPTIONAL"
	if f.required {
		rep = "REQUIRED"
	}
	switch f.kind {
	case "UTF8":
		return fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=%s", f.name, rep)
	default:
		return fmt.Sprintf("name=%s, type=%s, repetitiontype=%s", f.name, f.kind, rep)
	}
}

var identityFields = []parquetField{
	{"end_year", "INT32", true},
	{"type", "UTF8", true},
	{"district_id", "UTF8", false},
	{"campus_id", "UTF8", false},
	{"district_name", "UTF8", false},
	{"campus_name", "UTF8", false},
	{"charter_flag", "UTF8", false},
}

var tidyFields = append(append([]parquetField(nil), identityFields...),
	parquetField{"is_state", "BOOLEAN", true},
	parquetField{"is_district", "BOOLEAN", true},
	parquetField{"is_campus", "BOOLEAN", true},
	parquetField{"subgroup", "UTF8", true},
	parquetField{"grade_level", "UTF8", true},
	parquetField{"n_students", "INT64", false},
	parquetField{"pct", "DOUBLE", false},
)

func wideFields(records []domain.EnrollmentRecord) []parquetField {
	fields := append([]parquetField(nil), identityFields...)
	fields = append(fields, parquetField{"row_total", "INT64", false})
	for _, col := range WideColumns(records)[len(wideIdentityColumns):] {
		fields = append(fields, parquetField{col, "INT64", false})
	}
	return fields
}

func buildParquetSchema(fields []parquetField) (string, error) {
	tags := make([]map[string]string, 0, len(fields))
	for _, f := range fields {
		tags = append(tags, map[string]string{"Tag": f.tag()})
	}
	b, err := json.Marshal(map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": tags,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteTable writes the populated shape of table to w.
func (p *ParquetWriter) WriteTable(w io.Writer, table *domain.EnrollmentTable) error {
	if table == nil {
		return fmt.Errorf("nil table")
	}

	var (
		fields []parquetField
		rows   []map[string]any
	)
	if table.Shape == domain.ShapeTidy {
		fields = tidyFields
		rows = make([]map[string]any, 0, len(table.Tidy))
		for _, r := range table.Tidy {
			rows = append(rows, tidyParquetRow(r))
		}
	} else {
		fields = wideFields(table.Wide)
		attrs := fields[len(identityFields)+1:]
		rows = make([]map[string]any, 0, len(table.Wide))
		for _, r := range table.Wide {
			rows = append(rows, wideParquetRow(r, attrs))
		}
	}

	schemaDef, err := buildParquetSchema(fields)
	if err != nil {
		return fmt.Errorf("build parquet schema: %w", err)
	}

	pfw := writerfile.NewWriterFile(w)
	pw, err := writer.NewJSONWriter(schemaDef, pfw, p.parallel)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range rows {
		b, err := json.Marshal(row)
		if err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		if err := pw.Write(string(b)); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return nil
}

func identityRow(endYear int, level domain.ReportingLevel, districtID, campusID, districtName, campusName, charter *string) map[string]any {
	return map[string]any{
		"end_year":      endYear,
		"type":          string(level),
		"district_id":   districtID,
		"campus_id":     campusID,
		"district_name": districtName,
		"campus_name":   campusName,
		"charter_flag":  charter,
	}
}

func wideParquetRow(r domain.EnrollmentRecord, attrs []parquetField) map[string]any {
	row := identityRow(r.EndYear, r.Type, r.DistrictID, r.CampusID, r.DistrictName, r.CampusName, r.CharterFlag)
	row["row_total"] = r.RowTotal
	for _, f := range attrs {
		v, _ := r.Count(domain.Attribute(f.name))
		row[f.name] = v
	}
	return row
}

func tidyParquetRow(r domain.TidyRecord) map[string]any {
	row := identityRow(r.EndYear, r.Type, r.DistrictID, r.CampusID, r.DistrictName, r.CampusName, r.CharterFlag)
	row["is_state"] = r.IsState
	row["is_district"] = r.IsDistrict
	row["is_campus"] = r.IsCampus
	row["subgroup"] = r.Subgroup
	row["grade_level"] = r.GradeLevel
	row["n_students"] = r.NStudents
	row["pct"] = r.Pct
	return row
}
