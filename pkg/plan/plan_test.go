package plan

import (
	"fmt"
	"math"
	"testing"

	"github.com/matzehuels/svg2img/pkg/errors"
)

const eps = 1e-9

func TestNewScenarios(t *testing.T) {
	tests := []struct {
		name           string
		w, h           float64
		sizer          Sizer
		ss             int
		wantCanvas     [2]int
		wantTarget     [2]int
		wantScale      float64
		wantTx, wantTy float64
	}{
		{
			name:       "equal ratios fill the canvas",
			w:          100,
			h:          50,
			sizer:      Identity{},
			ss:         2,
			wantCanvas: [2]int{200, 100},
			wantTarget: [2]int{100, 50},
			wantScale:  2,
		},
		{
			name:       "tall canvas fits width",
			w:          100,
			h:          100,
			sizer:      Fixed{W: 50, H: 200},
			ss:         1,
			wantCanvas: [2]int{50, 200},
			wantTarget: [2]int{50, 200},
			wantScale:  0.5,
			wantTy:     75,
		},
		{
			name:       "wide canvas fits height",
			w:          100,
			h:          100,
			sizer:      Fixed{W: 300, H: 100},
			ss:         1,
			wantCanvas: [2]int{300, 100},
			wantTarget: [2]int{300, 100},
			wantScale:  1,
			wantTx:     100,
		},
		{
			name:       "supersampled padding doubles",
			w:          100,
			h:          100,
			sizer:      Fixed{W: 50, H: 200},
			ss:         2,
			wantCanvas: [2]int{100, 400},
			wantTarget: [2]int{50, 200},
			wantScale:  1,
			wantTy:     150,
		},
		{
			name: "nil sizer is identity",
			w:    10.5, h: 4,
			sizer:      nil,
			ss:         1,
			wantCanvas: [2]int{11, 4},
			wantTarget: [2]int{11, 4},
			wantScale:  1,
			wantTx:     0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.w, tt.h, tt.sizer, tt.ss)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if got := [2]int{p.CanvasWidth, p.CanvasHeight}; got != tt.wantCanvas {
				t.Errorf("canvas = %v, want %v", got, tt.wantCanvas)
			}
			if got := [2]int{p.TargetWidth, p.TargetHeight}; got != tt.wantTarget {
				t.Errorf("target = %v, want %v", got, tt.wantTarget)
			}
			if math.Abs(p.ScaleX-tt.wantScale) > eps || p.ScaleX != p.ScaleY {
				t.Errorf("scale = (%v, %v), want uniform %v", p.ScaleX, p.ScaleY, tt.wantScale)
			}
			if math.Abs(p.TranslateX-tt.wantTx) > eps || math.Abs(p.TranslateY-tt.wantTy) > eps {
				t.Errorf("translate = (%v, %v), want (%v, %v)", p.TranslateX, p.TranslateY, tt.wantTx, tt.wantTy)
			}
		})
	}
}

func TestCenteringInvariant(t *testing.T) {
	sizes := [][2]float64{{100, 50}, {50, 100}, {1, 1}, {333.3, 17.2}, {17.2, 333.3}, {640, 480}}
	targets := []Fixed{{W: 1, H: 1}, {W: 50, H: 200}, {W: 200, H: 50}, {W: 64, H: 64}, {W: 1920, H: 1080}}

	for _, s := range sizes {
		for _, tgt := range targets {
			for _, ss := range []int{1, 2, 4, 8} {
				name := fmt.Sprintf("%gx%g_to_%s_ss%d", s[0], s[1], tgt, ss)
				t.Run(name, func(t *testing.T) {
					p, err := New(s[0], s[1], tgt, ss)
					if err != nil {
						t.Fatalf("New() error: %v", err)
					}
					if p.CanvasWidth != ss*tgt.W || p.CanvasHeight != ss*tgt.H {
						t.Fatalf("canvas = %dx%d, want %dx%d", p.CanvasWidth, p.CanvasHeight, ss*tgt.W, ss*tgt.H)
					}
					cw, ch := float64(p.CanvasWidth), float64(p.CanvasHeight)
					sw, sh := s[0]*p.ScaleX, s[1]*p.ScaleY
					tol := 1e-9 * math.Max(cw, ch)
					if math.Abs(p.TranslateX+sw/2-cw/2) > tol {
						t.Errorf("x not centered: tx=%v scaled=%v canvas=%v", p.TranslateX, sw, cw)
					}
					if math.Abs(p.TranslateY+sh/2-ch/2) > tol {
						t.Errorf("y not centered: ty=%v scaled=%v canvas=%v", p.TranslateY, sh, ch)
					}
					if sw > cw+tol || sh > ch+tol {
						t.Errorf("content %vx%v overflows canvas %vx%v", sw, sh, cw, ch)
					}
					if math.Abs(sw-cw) > tol && math.Abs(sh-ch) > tol {
						t.Errorf("content %vx%v touches neither canvas edge %vx%v", sw, sh, cw, ch)
					}
				})
			}
		}
	}
}

func TestNewRejects(t *testing.T) {
	failing := SizerFunc(func(int, int) (int, int, error) {
		return 0, 0, fmt.Errorf("host callback failed")
	})

	tests := []struct {
		name  string
		w, h  float64
		sizer Sizer
		ss    int
	}{
		{"zero width from sizer", 100, 100, Fixed{W: 0, H: 10}, 1},
		{"negative height from sizer", 100, 100, Fixed{W: 10, H: -1}, 1},
		{"sizer error", 100, 100, failing, 1},
		{"zero intrinsic height", 100, 0, Identity{}, 1},
		{"NaN intrinsic width", math.NaN(), 10, Identity{}, 1},
		{"infinite intrinsic width", math.Inf(1), 10, Identity{}, 1},
		{"zero super sampling", 10, 10, Identity{}, 0},
		{"canvas overflow", 10, 10, Fixed{W: MaxCanvasDimension, H: 10}, 2},
		{"huge target", 10, 10, Fixed{W: math.MaxInt / 2, H: 10}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.w, tt.h, tt.sizer, tt.ss)
			if !errors.Is(err, errors.ErrCodeSize) {
				t.Errorf("New() error = %v, want code %v", err, errors.ErrCodeSize)
			}
		})
	}
}

func TestNewPassesIntrinsicCeil(t *testing.T) {
	var gotW, gotH int
	spy := SizerFunc(func(w, h int) (int, int, error) {
		gotW, gotH = w, h
		return w, h, nil
	})
	if _, err := New(10.2, 4.5, spy, 1); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if gotW != 11 || gotH != 5 {
		t.Errorf("sizer got %dx%d, want 11x5", gotW, gotH)
	}
}

func TestPadded(t *testing.T) {
	p, _ := New(100, 50, Identity{}, 2)
	if p.Padded() {
		t.Error("matching ratios should not be padded")
	}
	p, _ = New(100, 100, Fixed{W: 50, H: 200}, 1)
	if !p.Padded() {
		t.Error("tall canvas should be padded")
	}
}
