package sheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/models"
	"github.com/xuri/excelize/v2"
)

// TimeLayout is the text layout of the Last_Checked column.
const TimeLayout = "2006-01-02 15:04:05"

// Column names, in file order.
const (
	ColID          = "ID"
	ColName        = "Name"
	ColIP          = "IP"
	ColLocation    = "Location"
	ColCountry     = "Country"
	ColStatus      = "Status"
	ColCPU         = "CPU_Usage"
	ColRAM         = "RAM_Usage"
	ColDisk        = "Disk_Usage"
	ColNetIn       = "Network_In"
	ColNetOut      = "Network_Out"
	ColUptime      = "Uptime_Hours"
	ColScore       = "Performance_Score"
	ColLastChecked = "Last_Checked"
	ColLogs        = "Logs"
)

// Columns is the complete header of a current record store.
var Columns = []string{
	ColID, ColName, ColIP, ColLocation, ColCountry, ColStatus,
	ColCPU, ColRAM, ColDisk, ColNetIn, ColNetOut, ColUptime, ColScore,
	ColLastChecked, ColLogs,
}

var numericColumns = map[string]bool{
	ColCPU: true, ColRAM: true, ColDisk: true, ColNetIn: true,
	ColNetOut: true, ColUptime: true, ColScore: true,
}

// legacyColumns maps headers of workbooks written by the earlier desktop tool
// to the current column names.
var legacyColumns = map[string]string{
	"Nume":             ColName,
	"Locatie":          ColLocation,
	"UltimaVerificare": ColLastChecked,
	"Loguri":           ColLogs,
}

// MaxSequentialID is the last identifier FreeID hands out.
const MaxSequentialID = 999

// FreeID returns the first SRV-NNN identifier absent from used.
// It reports false once SRV-001 to SRV-999 are all taken.
func FreeID(used map[string]bool) (string, bool) {
	for n := 1; n <= MaxSequentialID; n++ {
		id := fmt.Sprintf("SRV-%03d", n)
		if !used[id] {
			return id, true
		}
	}
	return "", false
}

// fillFunc supplies the value of a column absent from the file for one row.
type fillFunc func(row int, column string, status models.Status) string

// layout locates the managed columns of a header row.
type layout struct {
	index map[string]int
	extra []int
}

func readHeader(header []string) layout {
	l := layout{index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := l.index[h]; h != "" && !dup {
			l.index[h] = i
		}
	}

	managed := make(map[int]bool, len(Columns))
	for _, c := range Columns {
		if i, ok := l.index[c]; ok {
			managed[i] = true
		}
	}
	for old, c := range legacyColumns {
		i, ok := l.index[old]
		if _, current := l.index[c]; ok && !current {
			l.index[c] = i
			managed[i] = true
		}
	}

	for i, h := range header {
		if !managed[i] && strings.TrimSpace(h) != "" {
			l.extra = append(l.extra, i)
		}
	}

	return l
}

// decode maps raw rows (header first) to servers.
// Values are taken as they are; unparsable numbers become zero.
// Rows without an ID get the first free SRV-NNN identifier.
func decode(rows [][]string, fill fillFunc) []models.Server {
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	l := readHeader(header)

	servers := make([]models.Server, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}

		at := func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}

		status := models.StatusDown
		if i, ok := l.index[ColStatus]; ok {
			status = models.Status(strings.ToLower(strings.TrimSpace(at(i))))
		}

		get := func(col string) string {
			if i, ok := l.index[col]; ok {
				return at(i)
			}
			if fill != nil {
				return fill(n, col, status)
			}
			return ""
		}

		s := models.Server{
			ID:       strings.TrimSpace(get(ColID)),
			Name:     get(ColName),
			IP:       strings.TrimSpace(get(ColIP)),
			Location: get(ColLocation),
			Country:  get(ColCountry),
			Status:   models.Status(strings.ToLower(strings.TrimSpace(get(ColStatus)))),
			Logs:     get(ColLogs),
		}
		s.CPU = parseFloat(s.ID, ColCPU, get(ColCPU))
		s.RAM = parseFloat(s.ID, ColRAM, get(ColRAM))
		s.Disk = parseFloat(s.ID, ColDisk, get(ColDisk))
		s.NetIn = int64(parseFloat(s.ID, ColNetIn, get(ColNetIn)))
		s.NetOut = int64(parseFloat(s.ID, ColNetOut, get(ColNetOut)))
		s.UptimeHours = parseFloat(s.ID, ColUptime, get(ColUptime))
		s.Score = parseFloat(s.ID, ColScore, get(ColScore))
		s.LastChecked = parseTime(get(ColLastChecked))

		for _, i := range l.extra {
			s.Extra = append(s.Extra, models.Cell{Header: strings.TrimSpace(header[i]), Value: at(i)})
		}

		servers = append(servers, s)
	}

	assignIDs(servers)
	return servers
}

func assignIDs(servers []models.Server) {
	used := make(map[string]bool, len(servers))
	for i := range servers {
		used[servers[i].ID] = true
	}

	next := MaxSequentialID
	for i := range servers {
		if servers[i].ID != "" {
			continue
		}

		id, ok := FreeID(used)
		for !ok {
			next++
			id = fmt.Sprintf("SRV-%d", next)
			ok = !used[id]
		}
		used[id] = true
		servers[i].ID = id

		log.Warn().Str("server_id", id).Str("name", servers[i].Name).Msg("Record without ID, assigned a new one")
	}
}

// extraHeaders lists the unmanaged columns carried by servers, first seen first.
func extraHeaders(servers []models.Server) []string {
	var headers []string
	seen := make(map[string]bool)
	for i := range servers {
		for _, c := range servers[i].Extra {
			if !seen[c.Header] {
				seen[c.Header] = true
				headers = append(headers, c.Header)
			}
		}
	}
	return headers
}

// encode renders one server as a sheet row: Columns order, then the extra columns.
func encode(s *models.Server, extra []string) []interface{} {
	row := []interface{}{
		s.ID, s.Name, s.IP, s.Location, s.Country, string(s.Status),
		round2(s.CPU), round2(s.RAM), round2(s.Disk), s.NetIn, s.NetOut,
		round2(s.UptimeHours), round2(s.Score),
		s.LastChecked.Format(TimeLayout), s.Logs,
	}

	for _, h := range extra {
		v := ""
		for _, c := range s.Extra {
			if c.Header == h {
				v = c.Value
				break
			}
		}
		row = append(row, v)
	}

	return row
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func parseFloat(id, column, raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		log.Warn().
			Str("server_id", id).
			Str("column", column).
			Str("value", raw).
			Msg("Unreadable number in record store, using 0")
		return 0
	}

	return v
}

// parseTime accepts the text layout, RFC3339 and Excel serial dates.
func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	if t, err := time.ParseInLocation(TimeLayout, raw, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t
		}
	}

	return time.Time{}
}

// cell returns the A1 reference of a 1-based column and row.
func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		panic(fmt.Sprintf("sheet: invalid cell %d:%d: %v", col, row, err))
	}
	return name
}
