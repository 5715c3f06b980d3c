package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/studiowebux/execbench/internal/catalog"
	"github.com/studiowebux/execbench/internal/types"
)

// PrintCatalog lists the cases of cat, one per line
func PrintCatalog(w io.Writer, cat *catalog.Catalog, format string) error {
	if format != "" && format != "text" {
		return writeStructured(w, cat.Cases(), format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLANGUAGE\tEXPECTED\tLINES")
	for _, tc := range cat.Cases() {
		fmt.Fprintf(tw, "%s\t%s\t%q\t%d\n", tc.Identity(), tc.Language, tc.Expected, strings.Count(tc.Code, "\n")+1)
	}
	return tw.Flush()
}

// ShowCase prints one case; code is syntax highlighted on terminals
func ShowCase(w io.Writer, tc types.TestCase, format string) error {
	if format != "" && format != "text" {
		return writeStructured(w, tc, format)
	}

	p := newPrinter(w)

	p.title(tc.Identity())
	p.field("language", string(tc.Language))
	p.field("expected", fmt.Sprintf("%q", tc.Expected))
	fmt.Fprintln(w)

	if !p.styled {
		_, err := fmt.Fprintln(w, tc.Code)
		return err
	}

	if err := quick.Highlight(w, tc.Code+"\n", lexerName(tc.Language), "terminal256", "monokai"); err != nil {
		_, err = fmt.Fprintln(w, tc.Code)
		return err
	}
	return nil
}

// lexerName maps catalog languages to chroma lexer names
func lexerName(lang types.Language) string {
	switch strings.ToLower(string(lang)) {
	case "cpp", "c++":
		return "cpp"
	case "js", "node":
		return "javascript"
	}
	return strings.ToLower(string(lang))
}
