// Package address implements the topic addressing model used by tether agents.
//
// An Address is either structured or custom. A structured address carries three
// parts, role, channel name and an optional group id, and renders as a flat
// topic string:
//
//	role/channelName            publish, no group
//	role/channelName/groupId    publish with group, or subscribe to one group
//	role/channelName/#          subscribe, any group
//
// A custom address is an arbitrary topic string that is used verbatim. It is
// the escape hatch for topics that do not follow the convention, including the
// broker-wide wildcard "#".
//
// Addresses are values. They never hold a cached topic string: Topic renders the
// parts on demand, and the With* methods return a rebuilt copy.
//
// Matching is asymmetric. Match takes the pattern declared by a receiver and a
// concrete incoming address, in that order:
//
//	receiver := address.ForSubscribe("color", address.Overrides{Role: "picker"})
//	incoming := address.MustParse("picker/color/left")
//	address.Match(receiver, incoming) // true
package address
