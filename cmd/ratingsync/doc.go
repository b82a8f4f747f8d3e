// Command ratingsync runs the IMDB rating synchronizer and its maintenance
// commands.
//
//	ratingsync run          start the scheduler in the foreground
//	ratingsync once         run a single batch and exit
//	ratingsync status       check paths, providers, and the dataset
//	ratingsync state ...    inspect or reset unfinished jobs
//	ratingsync cache ...    inspect or purge the identifier caches
//	ratingsync config ...   create, show, or validate configuration
//
// A .env file in the working directory (or the one named by --env-file) is
// loaded before configuration so the environment fallbacks see it.
package main
