package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"pdf-tools/internal/config"
	"pdf-tools/internal/logger"
	"pdf-tools/internal/organizer"
	"pdf-tools/internal/types"
)

//go:embed all:frontend/dist
var assets embed.FS

// Command line flags
var (
	pdfFlag      = flag.String("pdf", "", "PDF file to translate")
	sourceFlag   = flag.String("source", "", "source language tag (e.g. en)")
	targetFlag   = flag.String("target", "", "target language tag (e.g. fr)")
	layerFlag    = flag.String("layer", "", "name of the translation layer")
	colorFlag    = flag.String("color", "", "overlay text color (darkred, black, blue, darkgreen, purple)")
	fontFlag     = flag.String("font", "", "UTF-8 TTF font file for non-Latin targets")
	noOriginal   = flag.Bool("no-original", false, "hide the original rendition behind a default-off layer")
	organizeFlag = flag.Bool("organize", false, "reorganize pages of the given PDFs (positional args)")
	orderFlag    = flag.String("order", "", "page order, e.g. \"1.1,2.1,2.2,1.2,2.3\" or \"A.1,B.1\"")
	outFlag      = flag.String("out", "", "output file for --organize")
	cliFlag      = flag.Bool("cli", false, "run in CLI mode without GUI")
)

func printHelp() {
	fmt.Println("pdf-tools - build translation layers and reorganize PDF pages")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pdf-tools [options] [files...]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --pdf <PATH>       PDF file to translate")
	fmt.Println("  --source <TAG>     source language tag (default en)")
	fmt.Println("  --target <TAG>     target language tag (default zh-CN)")
	fmt.Println("  --layer <NAME>     translation layer name (default Translation)")
	fmt.Println("  --color <NAME>     overlay color: darkred, black, blue, darkgreen, purple")
	fmt.Println("  --font <PATH>      UTF-8 TTF font for non-Latin target scripts")
	fmt.Println("  --no-original      hide the original rendition behind a default-off layer")
	fmt.Println("  --organize         reorganize pages of the PDFs given as positional args")
	fmt.Println("  --order <SPEC>     page order, file.page tokens: \"1.1,2.1,2.2,1.2,2.3\"")
	fmt.Println("  --out <PATH>       output file for --organize")
	fmt.Println("  --cli              command line mode, no GUI")
	fmt.Println("  -h, --help         show this help")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  pdf-tools                                        # start the GUI")
	fmt.Println("  pdf-tools --cli --pdf paper.pdf --target fr")
	fmt.Println("  pdf-tools --organize --order \"1.1,2.1,2.2,1.2,2.3\" --out out.pdf a.pdf b.pdf")
}

// PDFHandler serves local PDF files to the frontend under /pdf/ so the
// preview pane can render them natively.
type PDFHandler struct{}

func (h *PDFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/pdf/") {
		http.NotFound(w, r)
		return
	}

	filePath := strings.TrimPrefix(r.URL.Path, "/pdf/")
	if decoded, err := url.PathUnescape(filePath); err == nil {
		filePath = decoded
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, filePath)
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	if *organizeFlag {
		runOrganizeCLI(flag.Args(), *orderFlag, *outFlag)
		return
	}

	if *cliFlag && *pdfFlag != "" {
		runTranslationCLI(*pdfFlag)
		return
	}

	app := NewApp()
	app.SetWailsRuntime(true)

	err := wails.Run(&options.App{
		Title:  "pdf-tools",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Assets:  assets,
			Handler: &PDFHandler{},
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		OnBeforeClose: func(ctx context.Context) (prevent bool) {
			if !app.IsProcessing() {
				return false
			}
			result, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
				Type:          runtime.QuestionDialog,
				Title:         "Confirm exit",
				Message:       "A translation is still running. Quit anyway?",
				Buttons:       []string{"Cancel", "Quit"},
				DefaultButton: "Cancel",
				CancelButton:  "Cancel",
			})
			if err != nil {
				return false
			}
			if result == "Cancel" {
				return true
			}
			app.CancelProcess()
			return false
		},
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runTranslationCLI translates one PDF without the GUI.
func runTranslationCLI(pdfPath string) {
	logger.Init(&logger.Config{
		LogFilePath:   "pdf-tools-cli.log",
		Level:         logger.LevelInfo,
		EnableConsole: false,
	})
	defer logger.Close()

	fmt.Println("=== PDF translation (CLI mode) ===")
	fmt.Printf("Input: %s\n", pdfPath)

	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error: file does not exist: %s\n", pdfPath)
		os.Exit(1)
	}

	app := NewApp()
	app.startup(context.Background())
	defer app.shutdown(context.Background())

	cfg := applyCLIOverrides(app)
	fmt.Printf("Model: %s\n", app.config.GetModel())
	fmt.Printf("Languages: %s -> %s\n",
		config.LanguageName(cfg.SourceLanguage), config.LanguageName(cfg.TargetLanguage))

	fmt.Println("Loading PDF...")
	pdfInfo, err := app.LoadPDF(pdfPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load PDF: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Pages: %d\n", pdfInfo.PageCount)

	fmt.Println("Translating...")

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				status := app.GetPDFStatus()
				fmt.Printf("  [%d%%] %s: %s\n", status.Progress, status.Phase, status.Message)
			}
		}
	}()

	result, err := app.TranslatePDF()
	close(done)

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: translation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("=== Translation complete ===")
	fmt.Printf("Original:   %s\n", result.OriginalPDFPath)
	fmt.Printf("Translated: %s\n", result.TranslatedPDFPath)
	fmt.Printf("Blocks: %d total, %d translated, %d from cache, %d failed\n",
		result.TotalBlocks, result.TranslatedBlocks, result.CachedBlocks, result.FailedBlocks)
}

// applyCLIOverrides applies flag overrides to the running pipeline for
// this invocation only. Nothing is written back to the config file.
func applyCLIOverrides(app *App) *types.Config {
	applyTranslationFlags(app.config)
	cfg := app.config.GetConfig()
	app.pipeline.UpdateConfig(cfg)
	return cfg
}

// applyTranslationFlags overrides the loaded config with CLI flags.
func applyTranslationFlags(mgr *config.Manager) {
	cfg := mgr.GetConfig()
	if *sourceFlag != "" {
		cfg.SourceLanguage = *sourceFlag
	}
	if *targetFlag != "" {
		cfg.TargetLanguage = *targetFlag
	}
	if *layerFlag != "" {
		cfg.LayerName = *layerFlag
	}
	if *colorFlag != "" {
		cfg.TextColor = *colorFlag
	}
	if *fontFlag != "" {
		cfg.FontFile = *fontFlag
	}
	if *noOriginal {
		cfg.KeepOriginal = false
	}
}

// runOrganizeCLI assembles an output PDF from the pages of the inputs.
func runOrganizeCLI(inputs []string, orderSpec, outputPath string) {
	logger.Init(&logger.Config{
		LogFilePath:   "pdf-tools-cli.log",
		Level:         logger.LevelInfo,
		EnableConsole: false,
	})
	defer logger.Close()

	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "error: --organize needs at least one input PDF")
		printHelp()
		os.Exit(1)
	}
	if outputPath == "" {
		fmt.Fprintln(os.Stderr, "error: --organize needs --out")
		os.Exit(1)
	}

	org := organizer.New()
	for _, input := range inputs {
		doc, err := org.AddPDF(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %s (%d pages)\n", doc.Name, doc.PageCount)
	}

	if orderSpec != "" {
		refs, err := organizer.ParseOrderSpec(orderSpec, org.Documents())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if err := org.SetOrder(refs); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := org.Assemble(outputPath); err != nil {
		if appErr, ok := err.(*types.AppError); ok {
			fmt.Fprintf(os.Stderr, "error [%s]: %v\n", appErr.Code, appErr)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("Arranged PDF written to %s\n", outputPath)
}
