package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MakeValidateFileName strips directories from the name, lowercases the extension and
// replaces spaces. Result is prefixed with "<id>/" when id is set
func MakeValidateFileName(id, fileName string) (string, error) {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("wrong file name '%s'", fileName)
	}
	ext := filepath.Ext(base)
	res := strings.ReplaceAll(strings.TrimSuffix(base, ext), " ", "_") + strings.ToLower(ext)
	if id != "" {
		return id + "/" + res, nil
	}
	return res, nil
}

//SupportAudioExt checks if audio ext is supported
func SupportAudioExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".wav", ".mp3", ".mp4", ".m4a", ".ogg", ".webm", ".wma":
		return true
	}
	return false
}

// AudioExt returns the extension of the URL path if it is a supported audio one, def otherwise
func AudioExt(urlStr, def string) string {
	u := urlStr
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if ext := strings.ToLower(filepath.Ext(u)); SupportAudioExt(ext) {
		return ext
	}
	return def
}
