// Package runsettings generates and reads run-settings XML documents.
//
// Only the data collection section is modelled:
//
//	<RunSettings>
//	  <DataCollectionRunSettings>
//	    <DataCollectors>
//	      <DataCollector friendlyName="..." uri="..." />
//
// Every attribute supplied to New ends up on the DataCollector element.
package runsettings
