// Command sterncast reads the Sternengeschichten podcast feed, keeps track of
// what you have selected, played and where you stopped, and plays or downloads
// episodes.
//
// Every command works offline from the last feed snapshot when the network is
// unavailable. Run `sterncast browse` for the interactive episode list.
package main
