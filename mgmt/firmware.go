/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package mgmt

import (
	"errors"

	"github.com/velocity-sp/mvdctl/coap"
	"github.com/velocity-sp/mvdctl/core"
	"github.com/velocity-sp/mvdctl/engine"
)

// octet-stream content format per the CoAP registry.
const contentFormatOctetStream = 42

// ProgressFunc observes a firmware transfer: transferred counts payload
// bytes on the wire, total is the image size.
type ProgressFunc func(transferred int, total int)

// FirmwareUpdate streams a firmware image to the device's upgrade resource
// using Block1. The image is not activated until the device resets.
func (m *Client) FirmwareUpdate(image []byte, progress ProgressFunc) error {
	if len(image) == 0 {
		return errors.New("empty firmware image")
	}

	core.LogInfo(m, "Starting firmware update of ", len(image), " bytes to /", m.firmwareResource)
	opts := engine.DefaultRequestOptions()
	opts.ContentFormat = contentFormatOctetStream
	if progress != nil {
		opts.Progress = func(transferred int, total int) {
			progress(transferred, len(image))
		}
	}

	_, err := m.engine.Do(coap.CodePUT, m.firmwareResource, image, opts)
	if err != nil {
		core.LogError(m, "Firmware update failed: ", err)
		return err
	}
	core.LogInfo(m, "Firmware update complete")
	return nil
}
