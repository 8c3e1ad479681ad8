// Package sheet implements the spreadsheet file that serves as the dashboard record store.
// The whole table is read and written at once; there is no indexing and no transaction.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/simulate"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet holding the server table.
const DefaultSheet = "Servers"

var (
	// ErrLocked is returned by Save when another program holds the workbook.
	ErrLocked = errors.New("record store is in use by another program")

	// ErrNoSheet is returned when the workbook has no worksheet at all.
	ErrNoSheet = errors.New("workbook has no worksheet")
)

// Options tune a Store.
type Options struct {
	// Rand feeds the values generated for columns missing from older files.
	Rand *rand.Rand

	// Sheet is the worksheet name, DefaultSheet when empty.
	Sheet string

	// Backup keeps the previous file as <path>.backup on every save.
	Backup bool
}

// Store reads and writes the server table of one workbook.
type Store struct {
	rng   *rand.Rand
	path  string
	sheet string

	mu          sync.Mutex
	fingerprint uint64
	backup      bool
}

// Open prepares the workbook at path: it is created with the default fleet when missing,
// upgraded when columns are missing, and recreated when it cannot be read.
func Open(path string, opts Options) (*Store, error) {
	s := &Store{
		path:   path,
		sheet:  opts.Sheet,
		backup: opts.Backup,
		rng:    opts.Rand,
	}
	if s.sheet == "" {
		s.sheet = DefaultSheet
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("Record store missing, creating default fleet")
		return s, s.write(Defaults(time.Now()))
	} else if err != nil {
		return nil, err
	}

	rows, sum, err := s.readRows()
	if err != nil {
		corrupt := path + ".corrupt"
		log.Error().Err(err).Str("path", path).Str("moved_to", corrupt).
			Msg("Record store unreadable, recreating default fleet")
		if err := os.Rename(path, corrupt); err != nil {
			return nil, fmt.Errorf("failed to move unreadable record store: %w", err)
		}
		return s, s.write(Defaults(time.Now()))
	}
	s.fingerprint = sum

	if err := s.upgrade(rows); err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the workbook location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole table.
func (s *Store) Load() ([]models.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, sum, err := s.readRows()
	if err != nil {
		return nil, err
	}
	s.fingerprint = sum

	servers := decode(rows, nil)
	log.Debug().Str("path", s.path).Int("servers", len(servers)).Msg("Record store loaded")

	return servers, nil
}

// Save replaces the whole table with servers.
// It returns ErrLocked without touching the file when another program holds it.
func (s *Store) Save(servers []models.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.locked(); err != nil {
		return err
	}

	if s.fingerprint != 0 {
		if sum, err := fileSum(s.path); err == nil && sum != s.fingerprint {
			log.Warn().Str("path", s.path).Msg("Record store changed on disk since last load, overwriting")
		}
	}

	if s.backup {
		if err := copyFile(s.path, s.path+".backup"); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", s.path).Msg("Failed to back up record store")
		}
	}

	return s.write(servers)
}

// Reset backs up the current workbook and writes the default fleet.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.locked(); err != nil {
		return err
	}
	if err := copyFile(s.path, s.path+".backup"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to back up record store: %w", err)
	}

	return s.write(Defaults(time.Now()))
}

// upgrade adds the columns an older workbook lacks and rewrites it.
// Headers of the desktop tool are renamed and unknown columns are kept.
// The previous file is always kept as <path>.backup.
func (s *Store) upgrade(rows [][]string) error {
	present := make(map[string]bool)
	if len(rows) > 0 {
		for _, h := range rows[0] {
			present[strings.TrimSpace(h)] = true
		}
	}

	var missing []string
	for _, c := range Columns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	now := time.Now()
	servers := decode(rows, func(_ int, column string, status models.Status) string {
		switch {
		case numericColumns[column]:
			return strconv.FormatFloat(simulate.Backfill(s.rng, column, status), 'f', 2, 64)
		case column == ColName:
			return "Unknown Server"
		case column == ColIP:
			return "0.0.0.0"
		case column == ColLocation:
			return "Unknown"
		case column == ColStatus:
			return string(models.StatusDown)
		case column == ColLastChecked:
			return now.Format(TimeLayout)
		case column == ColLogs:
			return "No logs available"
		default:
			return ""
		}
	})

	if err := copyFile(s.path, s.path+".backup"); err != nil {
		return fmt.Errorf("failed to back up record store before upgrade: %w", err)
	}

	log.Info().Str("path", s.path).Strs("columns", missing).Msg("Upgrading record store columns")

	return s.write(servers)
}

// readRows returns the raw rows of the server sheet and the file fingerprint.
func (s *Store) readRows() ([][]string, uint64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, 0, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	name := s.sheet
	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, 0, ErrNoSheet
		}
		name = list[0]
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	return rows, xxhash.Sum64(data), nil
}

// write renders servers into a new workbook and moves it over the store atomically.
func (s *Store) write(servers []models.Server) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), s.sheet); err != nil {
		return err
	}

	extra := extraHeaders(servers)
	header := make([]interface{}, 0, len(Columns)+len(extra))
	for _, c := range Columns {
		header = append(header, c)
	}
	for _, c := range extra {
		header = append(header, c)
	}
	if err := f.SetSheetRow(s.sheet, cell(1, 1), &header); err != nil {
		return err
	}

	for i := range servers {
		row := encode(&servers[i], extra)
		if err := f.SetSheetRow(s.sheet, cell(1, i+2), &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(s.sheet, "B", "D", 18)
	_ = f.SetColWidth(s.sheet, "O", "O", 60)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".srvdash-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	mode := os.FileMode(0o644)
	if st, err := os.Stat(s.path); err == nil {
		mode = st.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}

	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to render workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %v", ErrLocked, err)
		}
		return err
	}

	if sum, err := fileSum(s.path); err == nil {
		s.fingerprint = sum
	}

	return nil
}

// locked detects a workbook held open by a spreadsheet program:
// the owner file Excel and LibreOffice drop next to it, or a file that refuses read-write access.
func (s *Store) locked() error {
	dir, base := filepath.Split(s.path)
	for _, owner := range []string{"~$" + base, ".~lock." + base + "#"} {
		if _, err := os.Stat(filepath.Join(dir, owner)); err == nil {
			return fmt.Errorf("%w: owner file %s present", ErrLocked, owner)
		}
	}

	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}

	return f.Close()
}

func fileSum(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
