package cache

import (
	"sync"
	"testing"
	"time"

	"pingit/app/internal/models"
)

func TestGet_Empty(t *testing.T) {
	c := New()
	if _, ok := c.Get(); ok {
		t.Error("expected no snapshot before the first Set")
	}
}

func TestSet_Get(t *testing.T) {
	c := New()
	want := models.SpeedtestSnapshot{
		Ping: 12.5, Download: 250, Upload: 40,
		ISP: "Example ISP", Server: "Berlin",
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	c.Set(want)

	got, ok := c.Get()
	if !ok {
		t.Fatal("expected snapshot")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSet_Replaces(t *testing.T) {
	c := New()
	c.Set(models.SpeedtestSnapshot{Download: 1})
	c.Set(models.SpeedtestSnapshot{Download: 2})

	got, _ := c.Get()
	if got.Download != 2 {
		t.Errorf("Download = %v, want 2", got.Download)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	c := New()
	c.Set(models.SpeedtestSnapshot{ISP: "a"})

	got, _ := c.Get()
	got.ISP = "changed"

	again, _ := c.Get()
	if again.ISP != "a" {
		t.Errorf("stored snapshot was modified through Get: %q", again.ISP)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Set(models.SpeedtestSnapshot{Download: float64(i), Upload: float64(i)})
		}(i)
		go func() {
			defer wg.Done()
			if snap, ok := c.Get(); ok && snap.Download != snap.Upload {
				t.Errorf("torn snapshot %+v", snap)
			}
		}()
	}

	wg.Wait()
}
