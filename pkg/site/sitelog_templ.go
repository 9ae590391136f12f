package site

// sitelogTempl is the template for IGS site logs.
const sitelogTempl = `     {{.Ident.NineCharacterID}} Site Information Form (site log)
     International GNSS Service
     See Instructions at:
       https://files.igs.org/pub/station/general/sitelog_instr.txt

0.   Form

     Prepared by (full name)  : {{.FormInfo.PreparedBy}}
     Date Prepared            : {{day .FormInfo.DatePrepared}}
     Report Type              : {{.FormInfo.ReportType}}
     If Update:
      Previous Site Log       :
      Modified/Added Sections :


1.   Site Identification of the GNSS Monument

     Site Name                : {{.Ident.Name}}
     Four Character ID        : {{.Ident.FourCharacterID}}
     Monument Inscription     : {{.Ident.MonumentInscription}}
     IERS DOMES Number        : {{.Ident.DOMESNumber}}
     CDP Number               : {{.Ident.CDPNumber}}
     Monument Description     : {{.Ident.MonumentDescription}}
       Height of the Monument : {{printf "%.4f" .Ident.HeightOfMonument}}
       Monument Foundation    : {{.Ident.MonumentFoundation}}
       Foundation Depth       : {{printf "%.1f" .Ident.FoundationDepth}}
     Marker Description       : {{.Ident.MarkerDescription}}
     Date Installed           : {{date .Ident.DateInstalled}}
     Geologic Characteristic  : {{.Ident.GeologicCharacteristic}}
       Bedrock Type           : {{.Ident.BedrockType}}
       Bedrock Condition      : {{.Ident.BedrockCondition}}
       Fracture Spacing       : {{.Ident.FractureSpacing}}
       Fault zones nearby     : {{.Ident.FaultZonesNearby}}
         Distance/activity    : {{.Ident.DistanceActivity}}
     Additional Information   : {{.Ident.Notes}}


2.   Site Location Information

     City or Town             : {{.Location.City}}
     State or Province        : {{.Location.State}}
     Country                  : {{.Location.Country}}
     Tectonic Plate           : {{.Location.TectonicPlate}}
{{- with .Location.ApproximatePosition}}
     Approximate Position (ITRF)
       X coordinate (m)       : {{printf "%.4f" (index .CartesianPosition.Coordinates 0)}}
       Y coordinate (m)       : {{printf "%.4f" (index .CartesianPosition.Coordinates 1)}}
       Z coordinate (m)       : {{printf "%.4f" (index .CartesianPosition.Coordinates 2)}}
       Latitude (N is +)      : {{lat (index .GeodeticPosition.Coordinates 0)}}
       Longitude (E is +)     : {{lon (index .GeodeticPosition.Coordinates 1)}}
       Elevation (m,ellips.)  : {{printf "%.1f" (index .GeodeticPosition.Coordinates 2)}}
{{- end}}
     Additional Information   : {{.Location.Notes}}


3.   GNSS Receiver Information
{{range $i, $r := .Receivers}}
{{section 3 $i}}Receiver Type            : {{$r.Type}}
     Satellite System         : {{$r.SatSystems}}
     Serial Number            : {{$r.SerialNum}}
     Firmware Version         : {{$r.Firmware}}
     Elevation Cutoff Setting : {{printf "%.0f" $r.ElevationCutoff}}
     Date Installed           : {{date $r.DateInstalled}}
     Date Removed             : {{date $r.DateRemoved}}
     Temperature Stabiliz.    : {{$r.TemperatureStabiliz}}
     Additional Information   : {{$r.Notes}}
{{end}}

4.   GNSS Antenna Information
{{range $i, $a := .Antennas}}
{{section 4 $i}}Antenna Type             : {{$a.Type}}
     Serial Number            : {{$a.SerialNum}}
     Antenna Reference Point  : {{$a.ReferencePoint}}
     Marker->ARP Up Ecc. (m)  : {{printf "%8.4f" $a.EccUp}}
     Marker->ARP North Ecc(m) : {{printf "%8.4f" $a.EccNorth}}
     Marker->ARP East Ecc(m)  : {{printf "%8.4f" $a.EccEast}}
     Alignment from True N    : {{printf "%.0f" $a.AlignmentFromTrueNorth}}
     Antenna Radome Type      : {{$a.Radome}}
     Radome Serial Number     : {{$a.RadomeSerialNum}}
     Antenna Cable Type       : {{$a.CableType}}
     Antenna Cable Length     : {{printf "%.1f" $a.CableLength}}
     Date Installed           : {{date $a.DateInstalled}}
     Date Removed             : {{date $a.DateRemoved}}
     Additional Information   : {{$a.Notes}}
{{end}}

11.  On-Site, Point of Contact Agency Information
{{range .Contacts}}
{{template "party" .}}
{{- end}}


12.  Responsible Agency (if different from 11.)
{{range .ResponsibleAgencies}}
{{template "party" .}}
{{- end}}


13.  More Information

     Primary Data Center      : {{.MoreInformation.PrimaryDataCenter}}
     Secondary Data Center    : {{.MoreInformation.SecondaryDataCenter}}
     URL for More Information : {{.MoreInformation.URLForMoreInformation}}
     Additional Information   : {{.MoreInformation.Notes}}
{{define "party"}}     Agency                   : {{.OrganisationName}}
     Preferred Abbreviation   : {{.Abbreviation}}
     Mailing Address          : {{.Address}}
     Primary Contact
       Contact Name           : {{.IndividualName}}
       Telephone (primary)    : {{.Phone}}
       E-mail                 : {{.Email}}{{end}}`
