package ui

import "fmt"

// ASCIILogo is printed at the top of interactive runs
const ASCIILogo = `
    ╔════════════════════════════════════════════════════════════╗
    ║  ██████╗ ███████╗██████╗ ██╗  ██╗██████╗  █████╗ ███████╗  ║
    ║  ██╔══██╗██╔════╝██╔══██╗██║  ██║██╔══██╗██╔══██╗██╔════╝  ║
    ║  ██████╔╝█████╗  ██████╔╝███████║██████╔╝███████║███████╗  ║
    ║  ██╔══██╗██╔══╝  ██╔═══╝ ██╔══██║██╔══██╗██╔══██║╚════██║  ║
    ║  ██║  ██║███████╗██║     ██║  ██║██║  ██║██║  ██║███████║  ║
    ║  ╚═╝  ╚═╝╚══════╝╚═╝     ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝  ║
    ║          LINK-CHAIN CRAWLER & TEXT TRANSFORMER             ║
    ╚════════════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// plain disables ANSI escapes, e.g. when stdout is not a terminal.
var plain bool

// SetPlain turns colored output off or on.
func SetPlain(v bool) {
	plain = v
}

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if plain {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Print(Cyan(ASCIILogo))
}

// PrintError prints msg in red, followed by the first arg when given.
func PrintError(msg string, args ...interface{}) {
	fmt.Println(Red(withDetail(msg, args)))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning is PrintError in yellow.
func PrintWarning(msg string, args ...interface{}) {
	fmt.Println(Yellow(withDetail(msg, args)))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Println(Magenta(msg))
}

func withDetail(msg string, args []interface{}) string {
	if len(args) == 0 || args[0] == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, args[0])
}
