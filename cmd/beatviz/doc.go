// Command beatviz is a terminal music visualizer driven by beat detection.
//
// Running without a subcommand starts the visualizer on the default input
// device. Other subcommands list audio devices, analyze a WAV file offline
// and manage the configuration file.
package main
