// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package lfc

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrent tests that rely on happens-before
// edges established through atomic memory orderings on separate
// variables, which the race detector cannot observe.
const RaceEnabled = true
