package builtins

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/openfroyo/dsce/pkg/dscerr"
	"github.com/openfroyo/dsce/pkg/expr"
)

const (
	maxBase64SourceBytes = 96 * 1024
	maxTextContentChars  = 131072
)

func init() {
	registerFileIO()
}

func registerFileIO() {
	expr.Register(expr.FunctionMetadata{
		Name:     "loadFileAsBase64",
		MinArgs:  1,
		MaxArgs:  1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn:       loadFileAsBase64Fn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "loadTextContent",
		MinArgs:  1,
		MaxArgs:  2,
		ArgKinds: []expr.ArgKind{expr.ArgString, expr.ArgString},
		Fn:       loadTextContentFn,
	})
	expr.Register(expr.FunctionMetadata{
		Name:     "path",
		MinArgs:  2,
		MaxArgs:  -1,
		ArgKinds: []expr.ArgKind{expr.ArgString},
		Fn: func(_ *expr.Context, args []expr.Value) (expr.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				s, ok := a.AsString()
				if !ok {
					return expr.Value{}, dscerr.Function("path arguments must all be strings", nil).WithFunction("path")
				}
				parts[i] = s
			}
			return expr.String(filepath.Join(parts...)), nil
		},
	})
}

// resolveSandboxed resolves a user-supplied relative path against root and
// rejects any resolution that escapes it, the same ".." rejection the
// engine applies when resolving included manifest paths.
func resolveSandboxed(fn, root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", dscerr.IO("path must be relative", nil).WithFunction(fn).
			WithCode(dscerr.CodePathTraversal).WithDetail("path", rel)
	}
	joined := filepath.Join(root, rel)
	within, relErr := filepath.Rel(filepath.Clean(root), joined)
	if relErr != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", dscerr.IO("path escapes the configuration root", nil).WithFunction(fn).
			WithCode(dscerr.CodePathTraversal).WithDetail("path", rel)
	}
	return joined, nil
}

func loadFileAsBase64Fn(ctx *expr.Context, args []expr.Value) (expr.Value, error) {
	rel, _ := args[0].AsString()
	full, err := resolveSandboxed("loadFileAsBase64", configRoot(ctx), rel)
	if err != nil {
		return expr.Value{}, err
	}
	info, statErr := os.Stat(full)
	if statErr != nil {
		return expr.Value{}, dscerr.IO("unable to stat file", statErr).WithFunction("loadFileAsBase64").WithDetail("path", rel)
	}
	if info.Size() > maxBase64SourceBytes {
		return expr.Value{}, dscerr.IO("file exceeds the maximum size for loadFileAsBase64", nil).
			WithFunction("loadFileAsBase64").WithCode(dscerr.CodeFileTooLarge).
			WithDetail("path", rel).WithDetail("size", info.Size()).WithDetail("limit", maxBase64SourceBytes)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return expr.Value{}, dscerr.IO("unable to read file", err).WithFunction("loadFileAsBase64").WithDetail("path", rel)
	}
	return expr.String(base64.StdEncoding.EncodeToString(data)), nil
}

func loadTextContentFn(ctx *expr.Context, args []expr.Value) (expr.Value, error) {
	rel, _ := args[0].AsString()
	enc := "utf-8"
	if len(args) == 2 {
		enc, _ = args[1].AsString()
	}
	full, err := resolveSandboxed("loadTextContent", configRoot(ctx), rel)
	if err != nil {
		return expr.Value{}, err
	}
	raw, readErr := os.ReadFile(full)
	if readErr != nil {
		return expr.Value{}, dscerr.IO("unable to read file", readErr).WithFunction("loadTextContent").WithDetail("path", rel)
	}
	text, decErr := decodeText(raw, enc)
	if decErr != nil {
		return expr.Value{}, dscerr.IO("unable to decode file contents", decErr).
			WithFunction("loadTextContent").WithCode(dscerr.CodeDecodeError).
			WithDetail("path", rel).WithDetail("encoding", enc)
	}
	if n := len([]rune(text)); n > maxTextContentChars {
		return expr.Value{}, dscerr.IO("file contents exceed the maximum size for loadTextContent", nil).
			WithFunction("loadTextContent").WithCode(dscerr.CodeFileTooLarge).
			WithDetail("path", rel).WithDetail("chars", n).WithDetail("limit", maxTextContentChars)
	}
	return expr.String(text), nil
}

func configRoot(ctx *expr.Context) string {
	if ctx.ConfigRoot == "" {
		return "."
	}
	return ctx.ConfigRoot
}

func decodeText(raw []byte, enc string) (string, error) {
	switch strings.ToLower(enc) {
	case "utf-8", "utf8", "":
		return string(raw), nil
	case "utf-16", "utf16":
		return decodeWith(raw, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM))
	case "utf-16be", "utf16be":
		return decodeWith(raw, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM))
	case "iso-8859-1", "us-ascii", "ascii", "latin1":
		return decodeWith(raw, charmap.Windows1252)
	default:
		return "", dscerr.IO("unsupported text encoding", nil).WithDetail("encoding", enc)
	}
}

func decodeWith(raw []byte, enc encoding.Encoding) (string, error) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
