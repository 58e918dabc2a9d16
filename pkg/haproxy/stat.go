package haproxy

import "strings"

// statTable is one parsed tabular listing reply. Columns are located by
// header name, never by positional index, because the column set and order
// vary across balancer versions.
type statTable struct {
	columns map[string]bool
	rows    []map[string]string
}

func (t *statTable) hasColumn(name string) bool {
	return t != nil && t.columns[name]
}

// parseStatTable parses a tabular listing reply. The first line must be the
// header ("# pxname,svname,..." — the leading marker is optional); ragged
// rows and comment lines are skipped. A reply with no header at all yields
// nil, which callers distinguish from a header-only table with zero rows.
func parseStatTable(reply string) *statTable {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return nil
	}

	lines := strings.Split(trimmed, "\n")
	headerLine := strings.TrimSpace(strings.TrimPrefix(lines[0], "#"))
	headers := splitFields(headerLine)
	if len(headers) == 0 {
		return nil
	}

	table := &statTable{columns: make(map[string]bool, len(headers))}
	for _, name := range headers {
		table.columns[name] = true
	}

	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		values := splitFields(line)
		if len(values) != len(headers) {
			continue
		}

		row := make(map[string]string, len(headers))
		for i, name := range headers {
			row[name] = values[i]
		}
		table.rows = append(table.rows, row)
	}

	return table
}

func splitFields(line string) []string {
	// Stat records terminate with a trailing delimiter; drop the resulting
	// empty last field so header and row widths agree.
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}
