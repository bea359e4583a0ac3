package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/config"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/match"
)

// promptScan asks for the run parameters; empty answers keep the current
// value.
func promptScan(in io.Reader, out io.Writer, cfg *config.Config) error {
	scanner := bufio.NewScanner(in)
	ask := func(question, current string) (string, error) {
		fmt.Fprintf(out, "%s [%s]: ", question, current)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return current, nil
		}
		if answer := strings.TrimSpace(scanner.Text()); answer != "" {
			return answer, nil
		}
		return current, nil
	}

	mode, err := ask("Mode, (h)istory or (l)ive", cfg.Mode)
	if err != nil {
		return err
	}
	switch strings.ToLower(mode) {
	case "h", "history":
		cfg.Mode = config.ModeHistory
	case "l", "live":
		cfg.Mode = config.ModeLive
	default:
		cfg.Mode = mode
	}

	if cfg.Chat, err = ask("Chat id, link or handle (empty for all recent chats)", cfg.Chat); err != nil {
		return err
	}

	keywords, err := ask("Keywords, comma separated (empty keeps all text)", strings.Join(cfg.Keywords, ","))
	if err != nil {
		return err
	}
	cfg.Keywords = match.SplitKeywords(keywords)
	return nil
}
