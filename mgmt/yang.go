/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package mgmt

import (
	"github.com/velocity-sp/mvdctl/coap"
	"github.com/velocity-sp/mvdctl/engine"
	"github.com/velocity-sp/mvdctl/sid"
)

// YangGet reads the data tree at the specified path.
func (m *Client) YangGet(path string) (interface{}, error) {
	opts := engine.DefaultRequestOptions()
	opts.Accept = int(coap.ContentFormatYangDataCBOR)
	response, err := m.engine.Do(coap.CodeGET, path, nil, opts)
	if err != nil {
		return nil, err
	}
	if len(response.Payload) == 0 {
		return nil, nil
	}
	return m.decoder.Decode(response.Payload)
}

// YangSet writes the specified value at the specified path.
func (m *Client) YangSet(path string, value interface{}) error {
	return m.yangSet(path, value, "")
}

func (m *Client) yangSet(path string, value interface{}, query string) error {
	if entry, ok := m.table.Lookup(path); ok &&
		(entry.Kind == sid.KindLeaf || entry.Kind == sid.KindLeafList) {
		if err := m.table.Validate(path, value); err != nil {
			return err
		}
	}

	payload, err := m.encoder.Encode(value)
	if err != nil {
		return err
	}
	opts := engine.DefaultRequestOptions()
	opts.ContentFormat = m.contentFormatFor(value)
	opts.Query = query
	_, err = m.engine.Do(coap.CodePUT, path, payload, opts)
	return err
}

// YangDelete removes the data tree at the specified path.
func (m *Client) YangDelete(path string) error {
	_, err := m.engine.Do(coap.CodeDELETE, path, nil, engine.DefaultRequestOptions())
	return err
}

// YangRPC invokes the RPC or action at the specified path. A nil params
// value invokes it without input; the decoded output is returned, if any.
func (m *Client) YangRPC(path string, params interface{}) (interface{}, error) {
	opts := engine.DefaultRequestOptions()
	var payload []byte
	if params != nil {
		var err error
		payload, err = m.encoder.Encode(params)
		if err != nil {
			return nil, err
		}
		opts.ContentFormat = m.contentFormatFor(params)
	}
	response, err := m.engine.Do(coap.CodePOST, path, payload, opts)
	if err != nil {
		return nil, err
	}
	if len(response.Payload) == 0 {
		return nil, nil
	}
	return m.decoder.Decode(response.Payload)
}

// contentFormatFor picks the content format of an outgoing payload: a map
// keyed entirely by table-known paths is a SID key-set.
func (m *Client) contentFormatFor(value interface{}) int {
	if mapped, ok := value.(map[string]interface{}); ok && len(mapped) > 0 {
		allSids := true
		for key := range mapped {
			if _, ok := m.table.SidForPath(key); !ok {
				allSids = false
				break
			}
		}
		if allSids {
			return int(coap.ContentFormatYangIdentifiers)
		}
	}
	return int(coap.ContentFormatCBOR)
}
