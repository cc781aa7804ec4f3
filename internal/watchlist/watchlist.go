// Package watchlist loads the ticker list a scan runs over.
package watchlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/ternarybob/dailyscan/internal/common"
)

// Load reads the watchlist file at path. See Parse for the format.
func Load(path string) ([]common.Ticker, error) {
	f, err := os.Open(path)
	if err != nil {
		reason := "cannot read ticker list"
		if errors.Is(err, fs.ErrNotExist) {
			reason = fmt.Sprintf("ticker list %s not found", path)
		}
		return nil, &common.ConfigError{Field: "tickers.file", Reason: reason, Err: err}
	}
	defer f.Close()

	tickers, err := Parse(f)
	if err != nil {
		var cfgErr *common.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Reason = fmt.Sprintf("%s: %s", path, cfgErr.Reason)
		}
		return nil, err
	}
	return tickers, nil
}

// Parse reads one ticker per line. Blank lines and lines starting with '#'
// are ignored, anything after whitespace on a line is treated as a comment,
// symbols are upper-cased and repeats are dropped keeping the first. An
// empty result is a *common.ConfigError.
func Parse(r io.Reader) ([]common.Ticker, error) {
	var tickers []common.Ticker
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			line = fields[0]
		}

		ticker := common.ParseTicker(line)
		if ticker.IsZero() || seen[ticker.String()] {
			continue
		}
		seen[ticker.String()] = true
		tickers = append(tickers, ticker)
	}
	if err := scanner.Err(); err != nil {
		return nil, &common.ConfigError{Field: "tickers.file", Reason: "cannot read ticker list", Err: err}
	}

	if len(tickers) == 0 {
		return nil, common.NewConfigError("tickers.file", "ticker list is empty")
	}
	return tickers, nil
}
