/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package core

import "time"

// Version of mvdctl.
var Version string

// BuildTime contains the timestamp of when this version of mvdctl was built.
var BuildTime string

// StartTimestamp is the time the control stack was started.
var StartTimestamp time.Time

// ShouldQuit indicates whether the program is shutting down.
var ShouldQuit bool
