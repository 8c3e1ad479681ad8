package publish

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

var readmeTmpl = template.Must(template.New("readme").Funcs(template.FuncMap{
	"bytes": func(n int64) string { return humanize.IBytes(uint64(n)) },
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
}).Parse(`# {{.Name}}
{{if .Description}}
{{.Description}}
{{end}}
Uploaded {{.Time.Format "2006-01-02 15:04:05"}} by [{{.Owner}}](https://github.com/{{.Owner}}).

| Files | Directories | Size |
|---|---|---|
| {{comma .Stats.Files}} | {{comma .Stats.Dirs}} | {{bytes .Stats.Bytes}} |

## Getting the code

` + "```bash" + `
git clone {{.CloneURL}}
cd {{.Name}}
` + "```" + `
`))

const gitignoreBody = `# Dependencies
node_modules/
vendor/
.venv/
venv/
env/

# Build output
dist/
build/
*.egg-info/
__pycache__/
*.py[cod]

# Editors
.vscode/
.idea/
*.swp
*.swo
*~

# Logs and temp files
logs/
*.log
*.tmp
*.temp
*.bak
tmp/
temp/

# Local data
.env
*.local
*.xlsx
*.xls
*.csv
*.db
`

type readmeData struct {
	Time        time.Time
	Name        string
	Owner       string
	Description string
	CloneURL    string
	Stats       Stats
}

// writeScaffold adds README.md and .gitignore to dir when the source had none.
// It returns the names of the files written.
func writeScaffold(dir string, data readmeData) ([]string, error) {
	var written []string

	readme := filepath.Join(dir, "README.md")
	if !exists(readme) {
		var buf bytes.Buffer
		if err := readmeTmpl.Execute(&buf, data); err != nil {
			return written, fmt.Errorf("render README: %w", err)
		}
		if err := os.WriteFile(readme, buf.Bytes(), 0o644); err != nil {
			return written, fmt.Errorf("write README: %w", err)
		}
		written = append(written, "README.md")
	}

	ignore := filepath.Join(dir, ".gitignore")
	if !exists(ignore) {
		if err := os.WriteFile(ignore, []byte(gitignoreBody), 0o644); err != nil {
			return written, fmt.Errorf("write .gitignore: %w", err)
		}
		written = append(written, ".gitignore")
	}

	return written, nil
}
