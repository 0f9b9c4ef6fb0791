// Package entity models AVDECC entities as seen through ADP.
//
// An Entity is split into information common to the whole entity
// (identity, model, capabilities) and per AVB interface information
// (MAC address, valid time, available index, gPTP state). Remote
// entities are reconstructed from received ENTITY_AVAILABLE frames;
// local entities are hosted by this process and implement LocalEntity.
//
// Optional ADP fields are pointers: nil means the corresponding
// capability bit was not set in the announcement.
package entity
