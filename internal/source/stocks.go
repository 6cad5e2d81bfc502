package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/render"
	"github.com/paperframe/paperframe/pkg/models"
)

func init() {
	Register("stocks", newStocks)
}

type quote struct {
	Symbol    string
	Price     float64
	Change    float64
	ChangePct float64
}

// Stocks renders a market ticker board. Quotes are synthesized
// deterministically from the symbol and the current hour; wiring a real
// market data API only means replacing fetchQuotes.
type Stocks struct {
	logger  *zap.Logger
	symbols []string
	now     func() time.Time
}

func newStocks(name string, cfg Config, deps Deps) (Source, error) {
	s := &Stocks{
		logger:  deps.Logger,
		symbols: cfg.Strings("symbols"),
		now:     time.Now,
	}
	if len(s.symbols) == 0 {
		s.symbols = []string{"AAPL", "GOOGL", "MSFT", "TSLA"}
	}
	return s, nil
}

func (s *Stocks) ShouldUpdate() bool { return true }

func (s *Stocks) fetchQuotes() []quote {
	hour := s.now().Truncate(time.Hour).Unix()
	quotes := make([]quote, 0, len(s.symbols))
	for _, sym := range s.symbols {
		h := fnv.New64a()
		fmt.Fprintf(h, "%s|%d", sym, hour)
		seed := h.Sum64()

		price := 100 + float64(seed%40000)/100
		change := float64(int64(seed>>16%2000)-1000) / 100
		quotes = append(quotes, quote{
			Symbol:    sym,
			Price:     price,
			Change:    change,
			ChangePct: change / price * 100,
		})
	}
	return quotes
}

// Generate draws the ticker board. Losses go red on tri-color panels.
func (s *Stocks) Generate(ctx context.Context, width, height int, mode models.ColorMode) (image.Image, error) {
	canvas := render.NewCanvas(width, height)

	titleFace := render.BoldFace(40)
	symbolFace := render.BoldFace(32)
	priceFace := render.Face(28)
	infoFace := render.Face(20)

	canvas.Text(20, 60, "Stock Market", titleFace, render.Black)
	canvas.TextRight(width-20, 55, s.now().Format("3:04 PM"), infoFace, render.Black)
	canvas.HLine(20, width-20, 80, 2, render.Black)

	quotes := s.fetchQuotes()
	y := 140
	rowHeight := (height - y - 40) / len(quotes)
	if rowHeight < 36 {
		rowHeight = 36
	}

	for i, q := range quotes {
		col := render.Black
		if mode == models.TriColor && q.Change < 0 {
			col = render.Red
		}

		canvas.Text(30, y, q.Symbol, symbolFace, render.Black)
		canvas.Text(180, y, fmt.Sprintf("$%.2f", q.Price), priceFace, render.Black)
		canvas.Text(350, y, fmt.Sprintf("%+.2f (%+.2f%%)", q.Change, q.ChangePct), priceFace, col)

		if i < len(quotes)-1 {
			canvas.HLine(40, width-40, y+rowHeight-28, 1, render.LightGray)
		}
		y += rowHeight
		if y > height-40 {
			break
		}
	}

	canvas.Text(20, height-12, "Market data delayed 15 minutes", infoFace, grayOrBlack(mode))
	return canvas.RGBA, nil
}

func (s *Stocks) Cleanup() error { return nil }

// grayOrBlack picks a soft gray where the panel can actually show one.
func grayOrBlack(mode models.ColorMode) color.Color {
	if mode == models.Grayscale4 {
		return render.DarkGray
	}
	return render.Black
}
