package extract

import (
	"embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	basicSchema    = mustCompile("schemas/basic.json")
	extendedSchema = mustCompile("schemas/extended.json")
)

func mustCompile(name string) *gojsonschema.Schema {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("read topic schema %s: %v", name, err))
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile topic schema %s: %v", name, err))
	}
	return schema
}

func schemaFor(shape Shape) *gojsonschema.Schema {
	if shape == ShapeExtended {
		return extendedSchema
	}
	return basicSchema
}

// validateRecord checks one decoded record against the shape's schema and
// returns the first violation when it does not conform.
func validateRecord(record []byte, shape Shape) (bool, string) {
	result, err := schemaFor(shape).Validate(gojsonschema.NewBytesLoader(record))
	if err != nil {
		return false, err.Error()
	}
	if result.Valid() {
		return true, ""
	}
	errs := result.Errors()
	if len(errs) == 0 {
		return false, "invalid record"
	}
	return false, errs[0].String()
}
