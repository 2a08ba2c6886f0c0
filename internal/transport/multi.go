// SPDX-License-Identifier: MIT
package transport

import "errors"

// Multi fans a reading out to several transports. Every transport is tried;
// the first error is returned.
type Multi []Transport

func (m Multi) Send(r Reading) error {
	var first error
	for _, t := range m {
		if err := t.Send(r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every transport and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)
