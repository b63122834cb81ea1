package utils

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
	"github.com/jedib0t/go-pretty/v6/text"
)

func DrawBanner(w io.Writer, version string) {
	banner := figure.NewFigure("aws-teardown", "small", true)
	fmt.Fprint(w, text.FgHiRed.Sprint(banner.String()))
	fmt.Fprintf(w, " %s\n\n", text.FgHiBlack.Sprintf("resource reconciliation & destruction %s", version))
}
