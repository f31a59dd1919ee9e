package utils

import (
	"fmt"

	"freelaw.courtlistener.cl-update-index/pkg"
	"github.com/common-nighthawk/go-figure"
)

func PrintLogo() {
	logo := figure.NewColorFigure("CourtListener", "", "green", true)
	logo.Print()
	tool := figure.NewColorFigure("Index Updater", "", "blue", true)
	tool.Print()
	version := figure.NewColorFigure(fmt.Sprintf("v%s", pkg.GetVersion()), "", "red", true)
	version.Print()
	fmt.Println()
}
