// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	clock := Fake(testEpoch)

	if got := clock.Now(); !got.Equal(testEpoch) {
		t.Errorf("Now = %v, want %v", got, testEpoch)
	}

	clock.Advance(3 * time.Second)
	if got := clock.Now(); !got.Equal(testEpoch.Add(3 * time.Second)) {
		t.Errorf("Now after Advance = %v", got)
	}
}

func TestFakeAfterFiresAtDeadline(t *testing.T) {
	clock := Fake(testEpoch)
	channel := clock.After(10 * time.Millisecond)

	clock.Advance(5 * time.Millisecond)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(5 * time.Millisecond)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterImmediateForNonPositive(t *testing.T) {
	clock := Fake(testEpoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeSleepWakesOnAdvance(t *testing.T) {
	clock := Fake(testEpoch)
	done := make(chan struct{})

	go func() {
		clock.Sleep(time.Second)
		close(done)
	}()

	clock.WaitForWaiters(1)
	clock.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestWaitForWaitersBlocksUntilRegistered(t *testing.T) {
	clock := Fake(testEpoch)
	registered := make(chan struct{})

	go func() {
		clock.WaitForWaiters(2)
		close(registered)
	}()

	clock.After(time.Second)
	select {
	case <-registered:
		t.Fatal("WaitForWaiters returned with one waiter pending")
	case <-time.After(10 * time.Millisecond):
	}

	clock.After(time.Second)
	select {
	case <-registered:
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForWaiters did not return with two waiters pending")
	}
}
