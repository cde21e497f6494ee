// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package memory

import "time"

// SetClock replaces the KV clock.
func (k *KV) SetClock(now func() time.Time) { k.now = now }
