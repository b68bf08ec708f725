package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/layout"
)

// wgslInputMap maps WGSL vertex input type names to the scalar kind and component count they read.
// Both the templated (vec2<f32>) and the alias (vec2f) spellings are covered.
var wgslInputMap = buildInputMap()

func buildInputMap() map[string]layout.ShaderInput {
	scalars := []struct {
		name   string
		suffix string
		kind   layout.ScalarKind
	}{
		{"f32", "f", layout.ScalarFloat},
		{"f16", "h", layout.ScalarFloat},
		{"i32", "i", layout.ScalarSint},
		{"u32", "u", layout.ScalarUint},
	}

	m := make(map[string]layout.ShaderInput, len(scalars)*7)
	for _, s := range scalars {
		m[s.name] = layout.ShaderInput{Scalar: s.kind, Components: 1}
		for n := 2; n <= 4; n++ {
			in := layout.ShaderInput{Scalar: s.kind, Components: n}
			m[fmt.Sprintf("vec%d<%s>", n, s.name)] = in
			m[fmt.Sprintf("vec%d%s", n, s.suffix)] = in
		}
	}
	return m
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\(\s*(\d+)\s*\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\s*\w+\s*\)`)

	// fieldRegex matches a field or parameter: optional attributes, name, colon, type.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)
)

// parseVertexInputs extracts the @location inputs of the first @vertex entry point.
// Inputs may be declared directly as parameters or as fields of a struct parameter; @builtin
// inputs are skipped. A source without a vertex entry point yields an empty map.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - map[uint32]layout.ShaderInput: inputs keyed by location
//   - error: on an unsupported input type or a location declared twice
func parseVertexInputs(source string) (map[uint32]layout.ShaderInput, error) {
	result := make(map[uint32]layout.ShaderInput)
	cleaned := stripComments(source)

	params, ok := vertexEntryParams(cleaned)
	if !ok {
		return result, nil
	}

	structs := make(map[string]parsedStruct)
	for _, ps := range parseStructBlocks(cleaned) {
		structs[ps.name] = ps
	}

	add := func(f parsedField) error {
		in, ok := wgslInputMap[f.typeName]
		if !ok {
			return fmt.Errorf("vertex input %q at location %d has unsupported type %q", f.name, f.location, f.typeName)
		}
		loc := uint32(f.location)
		if _, exists := result[loc]; exists {
			return fmt.Errorf("vertex input location %d declared twice", loc)
		}
		result[loc] = in
		return nil
	}

	for _, p := range parseStructFields(params) {
		if p.isBuiltin {
			continue
		}
		if p.location >= 0 {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}
		ps, ok := structs[p.typeName]
		if !ok || !isVertexInputStruct(ps) {
			continue
		}
		for _, f := range ps.fields {
			if f.isBuiltin || f.location < 0 {
				continue
			}
			if err := add(f); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

// vertexEntryParams returns the raw parameter list of the first @vertex function.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - string: the text between the function's parentheses
//   - bool: false if no vertex entry point or no well-formed parameter list was found
func vertexEntryParams(source string) (string, bool) {
	loc := vertexEntryRegex.FindStringIndex(source)
	if loc == nil {
		return "", false
	}
	open := strings.IndexByte(source[loc[1]:], '(')
	if open < 0 {
		return "", false
	}
	open += loc[1]
	end := matchingParen(source, open)
	if end < 0 {
		return "", false
	}
	return source[open+1 : end], true
}

// parseEntryPoint extracts the entry point function name for the given shader type
// from WGSL source. Returns an empty string if no matching entry point annotation is found.
//
// Parameters:
//   - source: the raw WGSL source code string
//   - shaderType: the shader type to search for (ShaderTypeVertex or ShaderTypeFragment)
//
// Returns:
//   - string: the entry point function name, or empty string if not found
func parseEntryPoint(source string, shaderType ShaderType) string {
	cleaned := stripComments(source)

	var re *regexp.Regexp
	switch shaderType {
	case ShaderTypeVertex:
		re = vertexEntryRegex
	case ShaderTypeFragment:
		re = fragmentEntryRegex
	default:
		return ""
	}

	if match := re.FindStringSubmatch(cleaned); match != nil {
		return match[1]
	}
	return ""
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))

	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}

	return structs
}

// parseStructFields parses a comma separated list of struct fields or function parameters,
// extracting @location and @builtin attributes along with the name and type.
//
// Parameters:
//   - body: the content between { and } of a struct, or between ( and ) of a function
//
// Returns:
//   - []parsedField: all fields found in the body
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1}

		if builtinRegex.MatchString(line) {
			field.isBuiltin = true
		}

		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])

		fields = append(fields, field)
	}

	return fields
}
