// Package lifecycle holds the pure state machines of the lending system.
//
// Every function here is a transition of the form
// (current record, event, now) -> (next record, item effect) | error.
// Nothing in this package touches storage: the lending engines load a record,
// ask lifecycle what the next state is, and then apply the result together
// with the returned ItemEffect through a single conditional write.
package lifecycle
