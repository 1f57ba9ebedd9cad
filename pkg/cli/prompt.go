package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/klauspost/compress/zstd"
)

// Shell drives the line-editing loop: it accumulates input into statements,
// routes meta-commands and SQL to the session, and wires up completion.
type Shell struct {
	session        *Session
	highlighter    *SyntaxHighlighter
	buffer         string
	nonInteractive bool // reading from a pipe or file
	scriptMode     bool // executing lines from \i
}

func NewShell(session *Session) *Shell {
	return &Shell{
		session:     session,
		highlighter: NewSyntaxHighlighter(),
	}
}

// Run starts the interactive prompt, or consumes piped stdin statement by
// statement when the input is not a terminal.
func (sh *Shell) Run() error {
	stat, err := os.Stdin.Stat()
	isTerminal := err == nil && (stat.Mode()&os.ModeCharDevice) != 0

	if !isTerminal {
		sh.nonInteractive = true
		return sh.runNonInteractive()
	}

	p := prompt.New(
		sh.Executor,
		CompleterFor(sh.session, defaultMetadataTTL),
		prompt.OptionLivePrefix(sh.livePrefix),
		prompt.OptionTitle("go-pgcli"),
	)
	p.Run()
	return nil
}

func (sh *Shell) runNonInteractive() error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		sh.Executor(scanner.Text())
	}
	sh.flushBuffer()
	return scanner.Err()
}

// livePrefix reflects the session state, including the transaction marker.
func (sh *Shell) livePrefix() (string, bool) {
	return sh.session.Prompt(), true
}

// Executor handles one line of input.
func (sh *Shell) Executor(in string) {
	in = strings.TrimSpace(in)
	if in == "" {
		return
	}

	if strings.HasPrefix(in, `\`) {
		// Script sourcing feeds lines back through this loop, so it
		// lives here rather than in the session.
		if in == `\i` || strings.HasPrefix(in, `\i `) {
			fileName := strings.TrimSpace(strings.TrimPrefix(in, `\i`))
			if fileName == "" {
				fmt.Println(`\i requires a file name`)
				return
			}
			sh.sourceFile(fileName)
			return
		}
		if sh.session.DispatchMeta(context.Background(), in) {
			sh.quit()
		}
		return
	}

	if in == "exit" || in == "quit" {
		sh.quit()
	}

	sh.buffer += in + "\n"

	// Execute every complete statement in the buffer, keep the rest.
	for strings.Contains(sh.buffer, ";") {
		parts := strings.SplitN(sh.buffer, ";", 2)
		stmt := strings.TrimSpace(parts[0])
		sh.buffer = strings.TrimSpace(parts[1])
		if stmt == "" {
			continue
		}
		sh.execute(stmt)
	}
}

func (sh *Shell) execute(stmt string) {
	if !sh.nonInteractive && !sh.scriptMode {
		fmt.Printf("%s\n", sh.highlighter.HighlightSQL(stmt))
	}
	sh.session.DispatchSQL(context.Background(), stmt)
}

func (sh *Shell) flushBuffer() {
	stmt := strings.TrimSpace(sh.buffer)
	sh.buffer = ""
	if stmt != "" {
		sh.execute(stmt)
	}
}

func (sh *Shell) quit() {
	sh.session.Close(context.Background())
	fmt.Println("Goodbye!")
	os.Exit(0)
}

// sourceFile executes an SQL script file, transparently decompressing
// zstd-compressed files.
func (sh *Shell) sourceFile(fileName string) {
	content, err := os.ReadFile(fileName)
	if err != nil {
		fmt.Printf("Error opening file %q: %v\n", fileName, err)
		return
	}

	// zstd files start with the magic bytes 0x28 0xB5 0x2F 0xFD.
	isCompressed := len(content) >= 4 &&
		content[0] == 0x28 && content[1] == 0xB5 &&
		content[2] == 0x2F && content[3] == 0xFD

	if isCompressed {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			fmt.Printf("Error creating zstd decoder: %v\n", err)
			return
		}
		defer decoder.Close()

		content, err = decoder.DecodeAll(content, nil)
		if err != nil {
			fmt.Printf("Error decompressing file %q: %v\n", fileName, err)
			return
		}
	}

	oldScriptMode := sh.scriptMode
	sh.scriptMode = true
	defer func() { sh.scriptMode = oldScriptMode }()

	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		sh.Executor(scanner.Text())
	}
	sh.flushBuffer()

	if err := scanner.Err(); err != nil {
		fmt.Printf("Error reading file content: %v\n", err)
	}
}
