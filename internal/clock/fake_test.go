package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceFiresWaiters(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ch := f.After(5 * time.Second)
	f.Advance(3 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired too early")
	default:
	}
	f.Advance(3 * time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, f.Now(), got)
	default:
		t.Fatal("did not fire")
	}
}

func TestFake_AfterZeroFiresImmediately(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ch := f.After(0)
	select {
	case <-ch:
	default:
		t.Fatal("zero-duration After did not fire immediately")
	}
}
